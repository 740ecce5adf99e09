// Package queue implements the at-least-once delivery fabric every
// worker claims work from: enqueue onto a Redis list, atomically move
// a claimed message onto a per-queue processing list, and either ack
// (remove from processing) or retry (requeue with an incremented
// attempt count, dead-lettering after the third failure). The command
// sequence mirrors the source system's bktree-creation worker.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/kvcache"
	"retrieval-platform/pkg/types"
)

// ClaimTimeout is how long BRPopLPush blocks waiting for work before
// returning to let the caller check for shutdown.
const ClaimTimeout = 1 * time.Second

// Fabric is the Redis-backed queue implementation used by every
// worker in the platform.
type Fabric struct {
	kv *kvcache.Client
}

// New wraps an already-connected kvcache client.
func New(kv *kvcache.Client) *Fabric {
	return &Fabric{kv: kv}
}

// Enqueue pushes a new message of the given type onto queue with
// AttemptNumber 1.
func (f *Fabric) Enqueue(ctx context.Context, queue types.QueueName, msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return apierrors.Wrap(apierrors.Validation, "marshal queue payload", err)
	}
	msg := types.QueueMessage{
		ID:            uuid.New(),
		Type:          msgType,
		AttemptNumber: 1,
		Payload:       raw,
	}
	buf, err := json.Marshal(msg)
	if err != nil {
		return apierrors.Wrap(apierrors.Validation, "marshal queue envelope", err)
	}
	if err := f.kv.LPush(ctx, string(queue), buf); err != nil {
		return apierrors.Wrap(apierrors.Transient, "enqueue", err)
	}
	return nil
}

// Claimed wraps a dequeued message together with the exact bytes it
// was encoded as, since Ack/Retry must LREM that precise value back
// out of the processing list.
type Claimed struct {
	Msg types.QueueMessage
	raw []byte
}

// Claim blocks up to ClaimTimeout moving the next message on queue
// into its processing list. It returns nil, nil on a timed-out wait
// so callers can loop and check for shutdown between claims.
func (f *Fabric) Claim(ctx context.Context, queue types.QueueName) (*Claimed, error) {
	raw, err := f.kv.BRPopLPush(ctx, string(queue), types.ProcessingListFor(queue), ClaimTimeout)
	if err != nil {
		if kvcache.IsNil(err) {
			return nil, nil
		}
		return nil, apierrors.Wrap(apierrors.Transient, "claim", err)
	}
	var msg types.QueueMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		// A message that doesn't even decode can never succeed; pull it
		// off the processing list and drop it rather than spin forever.
		_ = f.kv.LRem(ctx, types.ProcessingListFor(queue), 1, raw)
		return nil, apierrors.Wrap(apierrors.Inconsistency, "decode claimed message", err)
	}
	return &Claimed{Msg: msg, raw: raw}, nil
}

// Ack removes a successfully processed message from its processing
// list.
func (f *Fabric) Ack(ctx context.Context, queue types.QueueName, c *Claimed) error {
	if err := f.kv.LRem(ctx, types.ProcessingListFor(queue), 1, c.raw); err != nil {
		return apierrors.Wrap(apierrors.Transient, "ack", err)
	}
	return nil
}

// Retry removes the claimed message from the processing list,
// increments its attempt counter, and either requeues it onto queue
// or, once AttemptNumber reaches types.MaxAttempts, pushes it onto
// the dead-letter list instead. The returned error is always
// non-nil and reports whether the message was dead-lettered,
// matching the source worker's readd_error_to_queue contract of
// surfacing the failure either way.
func (f *Fabric) Retry(ctx context.Context, queue types.QueueName, c *Claimed, cause error) error {
	msg := c.Msg
	if err := f.kv.LRem(ctx, types.ProcessingListFor(queue), 1, c.raw); err != nil {
		return apierrors.Wrap(apierrors.Transient, "remove from processing list", err)
	}

	msg.AttemptNumber++
	buf, err := json.Marshal(msg)
	if err != nil {
		return apierrors.Wrap(apierrors.Validation, "marshal retried message", err)
	}

	if msg.AttemptNumber > types.MaxAttempts {
		if err := f.kv.LPush(ctx, types.DeadLetterListFor(queue), buf); err != nil {
			return apierrors.Wrap(apierrors.Transient, "dead-letter", err)
		}
		return &apierrors.Error{Kind: apierrors.Inconsistency, Message: "dead-lettered after max attempts", Cause: cause}
	}

	if err := f.kv.LPush(ctx, string(queue), buf); err != nil {
		return apierrors.Wrap(apierrors.Transient, "requeue", err)
	}
	return &apierrors.Error{Kind: apierrors.Transient, Message: "requeued for retry", Cause: cause}
}

// RecoverOrphaned drains any messages left on queue's processing list
// back onto the head of queue itself. Called once at supervisor
// startup to recover from a crash mid-claim, since a message that was
// BRPopLPush'd but never acked or retried would otherwise sit stuck
// forever.
func (f *Fabric) RecoverOrphaned(ctx context.Context, queue types.QueueName) (int, error) {
	raws, err := f.kv.RPop(ctx, types.ProcessingListFor(queue), 10000)
	if err != nil {
		return 0, apierrors.Wrap(apierrors.Transient, "recover orphaned", err)
	}
	for _, raw := range raws {
		if err := f.kv.LPush(ctx, string(queue), []byte(raw)); err != nil {
			return 0, apierrors.Wrap(apierrors.Transient, "requeue orphaned", err)
		}
	}
	return len(raws), nil
}

// Depth reports the current length of queue, used by telemetry.
func (f *Fabric) Depth(ctx context.Context, queue types.QueueName) (int64, error) {
	return f.kv.LLen(ctx, string(queue))
}
