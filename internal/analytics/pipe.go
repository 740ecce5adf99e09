// Package analytics buffers ingest/search/delete events and flushes
// them to ClickHouse in batches, trading immediate durability for
// throughput: a flush happens on a 10-second tick or once 1000 events
// accumulate, whichever comes first, and Emit never blocks the
// caller waiting on either.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"retrieval-platform/internal/logging"
)

const (
	flushInterval = 10 * time.Second
	flushBatch    = 1000
)

// Event is one analytics record. Kind names the event ("chunks_ingested",
// "search_performed", "dataset_deleted"); Count and ExtraMs are
// interpreted per kind. Query and TopScore are populated only for
// "search_performed" (spec.md §4.5 step 7's SearchQueryEvent).
type Event struct {
	Kind      string
	DatasetID uuid.UUID
	Count     int
	ExtraMs   float64
	Query     string
	TopScore  float64
	At        time.Time
}

// Sink writes a batch of events to durable storage. Implementations
// wrap a ClickHouse client in production and an in-memory slice in
// tests.
type Sink interface {
	WriteBatch(ctx context.Context, events []Event) error
}

// Pipe is the buffered, non-blocking front end every component emits
// events through.
type Pipe struct {
	sink   Sink
	logger logging.Logger

	mu      sync.Mutex
	buf     []Event
	closeCh chan struct{}
	doneCh  chan struct{}
}

// New starts a Pipe with a background flush loop. If sink is nil,
// Emit becomes a no-op, used when USE_ANALYTICS is disabled.
func New(sink Sink, logger logging.Logger) *Pipe {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	p := &Pipe{
		sink:    sink,
		logger:  logger,
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if sink != nil {
		go p.loop()
	} else {
		close(p.doneCh)
	}
	return p
}

// Emit buffers an event. It never blocks on I/O: a full buffer is
// flushed on a separate goroutine.
func (p *Pipe) Emit(e Event) {
	if p.sink == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	p.mu.Lock()
	p.buf = append(p.buf, e)
	full := len(p.buf) >= flushBatch
	p.mu.Unlock()
	if full {
		go p.flush()
	}
}

func (p *Pipe) loop() {
	defer close(p.doneCh)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.flush()
		case <-p.closeCh:
			p.flush()
			return
		}
	}
}

func (p *Pipe) flush() {
	p.mu.Lock()
	if len(p.buf) == 0 {
		p.mu.Unlock()
		return
	}
	batch := p.buf
	p.buf = nil
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.sink.WriteBatch(ctx, batch); err != nil {
		p.logger.Warn("analytics flush failed", "events", len(batch), "error", err)
	}
}

// Close flushes any buffered events and stops the background loop.
func (p *Pipe) Close() {
	if p.sink == nil {
		return
	}
	close(p.closeCh)
	<-p.doneCh
}
