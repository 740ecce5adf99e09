// Package telemetry exposes Prometheus metrics for queue depth and
// worker throughput, scraped the way every Prometheus-instrumented
// service in the ecosystem exposes them: a /metrics handler backed by
// the default registry.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"retrieval-platform/internal/queue"
	"retrieval-platform/pkg/types"
)

var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "retrieval_queue_depth",
		Help: "Number of messages waiting in each queue.",
	}, []string{"queue"})

	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retrieval_messages_processed_total",
		Help: "Messages acked per queue.",
	}, []string{"queue"})

	messagesDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retrieval_messages_dead_lettered_total",
		Help: "Messages dead-lettered per queue after exhausting retries.",
	}, []string{"queue"})

	processingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retrieval_message_processing_seconds",
		Help:    "Time spent processing a single claimed message.",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})
)

// RecordAck increments the processed counter for queue.
func RecordAck(q types.QueueName) {
	messagesProcessed.WithLabelValues(string(q)).Inc()
}

// RecordDeadLetter increments the dead-letter counter for queue.
func RecordDeadLetter(q types.QueueName) {
	messagesDeadLettered.WithLabelValues(string(q)).Inc()
}

// ObserveProcessing records how long a claimed message took to
// process, successful or not.
func ObserveProcessing(q types.QueueName, d time.Duration) {
	processingDuration.WithLabelValues(string(q)).Observe(d.Seconds())
}

// PollDepths periodically samples queue depth for every name in
// queues and publishes it as a gauge, until ctx is canceled.
func PollDepths(ctx context.Context, fabric *queue.Fabric, queues []types.QueueName, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, q := range queues {
				depth, err := fabric.Depth(ctx, q)
				if err != nil {
					continue
				}
				queueDepth.WithLabelValues(string(q)).Set(float64(depth))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Handler returns the HTTP handler that serves the default
// Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
