// Command delete-worker claims delete_dataset and delete_chunks
// messages and runs the corresponding Deleter cascade.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"syscall"
	"time"

	"retrieval-platform/internal/analytics"
	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/bootstrap"
	"retrieval-platform/internal/config"
	"retrieval-platform/internal/deleter"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/supervisor"
	"retrieval-platform/pkg/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level)).WithComponent("delete-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.Connect(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect stores: %v", err)
	}
	defer stores.Close()

	del := deleter.New(stores.Meta, stores.Vectors, logger)

	handle := func(ctx context.Context, msg types.QueueMessage) error {
		switch msg.Type {
		case "delete_dataset":
			var payload types.DeleteDatasetPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return apierrors.Wrap(apierrors.Inconsistency, "decode delete_dataset payload", err)
			}
			if err := del.DeleteDataset(ctx, payload.DatasetID); err != nil {
				return err
			}
			if stores.Analytics != nil {
				stores.Analytics.Emit(analytics.Event{
					Kind:      "dataset_deleted",
					DatasetID: payload.DatasetID,
					At:        time.Now(),
				})
			}
			logger.Info("dataset delete cascade complete", "dataset_id", payload.DatasetID)
			return nil
		case "delete_chunks":
			var payload types.DeleteChunksByFilterPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return apierrors.Wrap(apierrors.Inconsistency, "decode delete_chunks payload", err)
			}
			if err := del.DeleteByFilter(ctx, payload.DatasetID, payload.Filter); err != nil {
				return err
			}
			logger.Info("filtered delete complete", "dataset_id", payload.DatasetID)
			return nil
		default:
			return apierrors.New(apierrors.Inconsistency, "unknown message type: "+msg.Type)
		}
	}

	sup := supervisor.New(types.QueueDelete, stores.Fabric, handle, logger)
	go func() {
		<-ctx.Done()
		sup.Stop()
	}()
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("supervisor exited", "error", err)
	}
}
