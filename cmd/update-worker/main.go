// Command update-worker claims group_update messages: bulk group
// bookmark operations and boost upserts that are cheap
// enough not to warrant a dedicated worker but too bursty to run
// inline on the request path.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/bootstrap"
	"retrieval-platform/internal/config"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/supervisor"
	"retrieval-platform/pkg/types"
)

// groupUpdatePayload is the Type == "bookmark_chunks" payload: attach
// every listed chunk to a group in one message.
type groupUpdatePayload struct {
	GroupID  uuid.UUID   `json:"group_id"`
	ChunkIDs []uuid.UUID `json:"chunk_ids"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level)).WithComponent("update-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.Connect(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect stores: %v", err)
	}
	defer stores.Close()

	handle := func(ctx context.Context, msg types.QueueMessage) error {
		switch msg.Type {
		case "bookmark_chunks":
			var payload groupUpdatePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return apierrors.Wrap(apierrors.Inconsistency, "decode bookmark_chunks payload", err)
			}
			for _, chunkID := range payload.ChunkIDs {
				if err := stores.Meta.BookmarkChunk(ctx, chunkID, payload.GroupID); err != nil {
					return err
				}
			}
			logger.Info("bookmarked chunks", "group_id", payload.GroupID, "count", len(payload.ChunkIDs))
			return nil
		case "upsert_boost":
			var boost types.Boost
			if err := json.Unmarshal(msg.Payload, &boost); err != nil {
				return apierrors.Wrap(apierrors.Inconsistency, "decode upsert_boost payload", err)
			}
			return stores.Meta.UpsertBoost(ctx, boost)
		default:
			return apierrors.New(apierrors.Inconsistency, "unknown message type: "+msg.Type)
		}
	}

	sup := supervisor.New(types.QueueGroupUpdate, stores.Fabric, handle, logger)
	go func() {
		<-ctx.Done()
		sup.Stop()
	}()
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("supervisor exited", "error", err)
	}
}
