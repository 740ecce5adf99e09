package bktree

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMaxDistanceForThreeWayBudget(t *testing.T) {
	// Below every range: correction must be skipped entirely (B2).
	assert.Equal(t, 0, maxDistanceFor(1))
	assert.Equal(t, 0, maxDistanceFor(2))
	// Within singleTypoRange.
	assert.Equal(t, 1, maxDistanceFor(3))
	assert.Equal(t, 1, maxDistanceFor(7))
	// Within twoTypoRange.
	assert.Equal(t, 2, maxDistanceFor(8))
	assert.Equal(t, 2, maxDistanceFor(20))
}

func newTestCache(t *testing.T, tree *Tree) (*Cache, uuid.UUID) {
	t.Helper()
	c := &Cache{entries: make(map[uuid.UUID]cacheEntry)}
	datasetID := uuid.New()
	c.insertWithTTL(datasetID, tree)
	return c, datasetID
}

func TestCorrectQuerySkipsShortWords(t *testing.T) {
	tree := New()
	tree.Insert("to")
	cache, datasetID := newTestCache(t, tree)

	corrected, changed := CorrectQuery(context.Background(), cache, datasetID, "go", nil)
	assert.False(t, changed)
	assert.Equal(t, "go", corrected)
}

func TestCorrectQueryFixesTypoWithinBudget(t *testing.T) {
	tree := New()
	tree.Insert("hello")
	tree.Insert("hello")
	tree.Insert("hello")
	cache, datasetID := newTestCache(t, tree)

	corrected, changed := CorrectQuery(context.Background(), cache, datasetID, "helllo", nil)
	assert.True(t, changed)
	assert.Equal(t, "hello", corrected)
}

func TestCorrectQueryHonorsDisableList(t *testing.T) {
	tree := New()
	tree.Insert("hello")
	cache, datasetID := newTestCache(t, tree)

	corrected, changed := CorrectQuery(context.Background(), cache, datasetID, "helllo", map[string]bool{"helllo": true})
	assert.False(t, changed)
	assert.Equal(t, "helllo", corrected)
}
