package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu     sync.Mutex
	events []Event
}

func (m *memSink) WriteBatch(_ context.Context, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestPipeEmitFlushesOnClose(t *testing.T) {
	sink := &memSink{}
	pipe := New(sink, nil)

	pipe.Emit(Event{Kind: "chunks_ingested", DatasetID: uuid.New(), Count: 3})
	pipe.Emit(Event{Kind: "search_performed", DatasetID: uuid.New(), Count: 1})
	pipe.Close()

	assert.Equal(t, 2, sink.count())
}

func TestPipeEmitFlushesAtBatchSize(t *testing.T) {
	sink := &memSink{}
	pipe := New(sink, nil)
	defer pipe.Close()

	for i := 0; i < flushBatch; i++ {
		pipe.Emit(Event{Kind: "chunks_ingested"})
	}

	require.Eventually(t, func() bool {
		return sink.count() == flushBatch
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPipeWithNilSinkIsNoOp(t *testing.T) {
	pipe := New(nil, nil)
	pipe.Emit(Event{Kind: "chunks_ingested"})
	pipe.Close()
}
