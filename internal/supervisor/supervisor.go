// Package supervisor runs a worker's claim-handle-ack loop against a
// queue, with the connection-acquisition backoff and signal handling
// every worker binary in the source system shared: try to connect
// with exponential backoff from 1s up to 300s, then loop claiming
// messages until a termination signal flips an atomic flag, at which
// point the loop finishes its in-flight message and exits instead of
// leaving it stuck in the processing list.
package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/queue"
	"retrieval-platform/internal/telemetry"
	"retrieval-platform/pkg/types"
)

// Handler processes one claimed message. A returned error triggers a
// retry/dead-letter; a nil error acks the message.
type Handler func(ctx context.Context, msg types.QueueMessage) error

// Connector establishes whatever live connection a worker needs
// before it can start claiming (a fabric, a store) and is retried
// with backoff until it succeeds or the supervisor is asked to stop.
type Connector func(ctx context.Context) error

const (
	minBackoff = 1 * time.Second
	maxBackoff = 300 * time.Second
)

// Supervisor runs Handler against messages claimed from one queue.
type Supervisor struct {
	Queue   types.QueueName
	Fabric  *queue.Fabric
	Handle  Handler
	Logger  logging.Logger
	stopped atomic.Bool
}

// New constructs a Supervisor.
func New(q types.QueueName, fabric *queue.Fabric, handle Handler, logger logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Supervisor{Queue: q, Fabric: fabric, Handle: handle, Logger: logger}
}

// Stop requests the claim loop exit after its current message.
func (s *Supervisor) Stop() { s.stopped.Store(true) }

// Run recovers any orphaned in-flight messages left from a prior
// crash, then claims and handles messages until Stop is called or ctx
// is canceled.
func (s *Supervisor) Run(ctx context.Context) error {
	recovered, err := s.Fabric.RecoverOrphaned(ctx, s.Queue)
	if err != nil {
		s.Logger.Warn("failed to recover orphaned messages", "queue", s.Queue, "error", err)
	} else if recovered > 0 {
		s.Logger.Info("recovered orphaned messages", "queue", s.Queue, "count", recovered)
	}

	// A claimed message is handled, acked and retried on a context that
	// a shutdown signal does not cancel, so it is finished rather than
	// abandoned in the processing list.
	work := context.WithoutCancel(ctx)
	// Transport errors on claim back off independently of connection
	// acquisition: 10s doubling, capped at maxBackoff.
	const claimMinBackoff = 10 * time.Second
	claimBackoff := claimMinBackoff
	for {
		if s.stopped.Load() || ctx.Err() != nil {
			return ctx.Err()
		}

		claimed, err := s.Fabric.Claim(ctx, s.Queue)
		if err != nil {
			s.Logger.Warn("claim failed", "queue", s.Queue, "error", err)
			if !sleep(ctx, claimBackoff) {
				return ctx.Err()
			}
			claimBackoff = min(claimBackoff*2, maxBackoff)
			continue
		}
		claimBackoff = claimMinBackoff
		if claimed == nil {
			continue // timed-out wait; loop back and check stop/ctx
		}

		start := time.Now()
		handleErr := s.Handle(work, claimed.Msg)
		telemetry.ObserveProcessing(s.Queue, time.Since(start))

		if handleErr == nil {
			if err := s.Fabric.Ack(work, s.Queue, claimed); err != nil {
				s.Logger.Warn("ack failed", "queue", s.Queue, "error", err)
			} else {
				telemetry.RecordAck(s.Queue)
			}
			continue
		}

		retryErr := s.Fabric.Retry(work, s.Queue, claimed, handleErr)
		if apierrors.Is(retryErr, apierrors.Inconsistency) {
			telemetry.RecordDeadLetter(s.Queue)
			s.Logger.Error("message dead-lettered", "queue", s.Queue, "message_id", claimed.Msg.ID, "error", handleErr)
		} else {
			s.Logger.Warn("message requeued for retry", "queue", s.Queue, "message_id", claimed.Msg.ID, "attempt", claimed.Msg.AttemptNumber, "error", handleErr)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// ConnectWithBackoff retries connect with doubling backoff from
// minBackoff up to maxBackoff, the same 1s-to-300s curve the source
// system's worker binaries use while waiting for Redis or Postgres to
// become reachable at startup.
func ConnectWithBackoff(ctx context.Context, logger logging.Logger, connect Connector) error {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	delay := minBackoff
	for {
		if err := connect(ctx); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		} else {
			logger.Warn("connection attempt failed, backing off", "delay", delay, "error", err)
		}

		if !sleep(ctx, delay) {
			return ctx.Err()
		}
		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
}
