package bktree

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"retrieval-platform/internal/kvcache"
)

// entryTTL is how long a tree stays warm in the in-process cache
// before a search falls back to reloading it from Redis.
const entryTTL = 24 * time.Hour

// sweepInterval is how often the cache evicts expired entries.
const sweepInterval = 60 * time.Second

type cacheEntry struct {
	tree    *Tree
	expires time.Time
}

// Cache holds recently-loaded trees in process memory, keyed by
// dataset, so a burst of searches against the same dataset doesn't
// each pay a Redis round-trip and a gzip decode.
type Cache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]cacheEntry
	kv      *kvcache.Client
	stop    chan struct{}
}

// NewCache starts a Cache with a background sweep goroutine.
func NewCache(kv *kvcache.Client) *Cache {
	c := &Cache{
		entries: make(map[uuid.UUID]cacheEntry),
		kv:      kv,
		stop:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Close stops the background sweep goroutine.
func (c *Cache) Close() { close(c.stop) }

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) evictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, id)
		}
	}
}

// getIfValid returns the cached tree for datasetID if present and
// unexpired.
func (c *Cache) getIfValid(datasetID uuid.UUID) (*Tree, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[datasetID]
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.tree, true
}

// insertWithTTL stores t under datasetID with the standard 24h TTL.
func (c *Cache) insertWithTTL(datasetID uuid.UUID, t *Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[datasetID] = cacheEntry{tree: t, expires: time.Now().Add(entryTTL)}
}

// Get returns the tree for datasetID, loading it from Redis and
// refilling the in-process cache on a miss.
func (c *Cache) Get(ctx context.Context, datasetID uuid.UUID) (*Tree, error) {
	if t, ok := c.getIfValid(datasetID); ok {
		return t, nil
	}
	t, err := Load(ctx, c.kv, datasetID)
	if err != nil {
		return nil, err
	}
	c.insertWithTTL(datasetID, t)
	return t, nil
}

// Invalidate drops a dataset's cached tree from this process's cache,
// called after a build_bktree message rebuilds it. Caches held by
// other processes (search-api, for instance) keep their copy until
// its 24h TTL runs out.
func (c *Cache) Invalidate(datasetID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, datasetID)
}
