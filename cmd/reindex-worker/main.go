// Command reindex-worker claims reindex messages and migrates a
// dataset's points into a new collection shape, either by adding BM25
// vectors to existing points or by re-embedding chunk content with a
// new dense model.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"syscall"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/bootstrap"
	"retrieval-platform/internal/config"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/reindex"
	"retrieval-platform/internal/supervisor"
	"retrieval-platform/pkg/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level)).WithComponent("reindex-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.Connect(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect stores: %v", err)
	}
	defer stores.Close()

	reindexer := reindex.New(stores.Meta, stores.Vectors, stores.Dense, stores.Sparse, stores.BM25, logger)

	handle := func(ctx context.Context, msg types.QueueMessage) error {
		var payload types.ReindexPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return apierrors.Wrap(apierrors.Inconsistency, "decode reindex payload", err)
		}
		migrated, err := reindexer.Run(ctx, payload.DatasetID, payload.Mode, payload.NewConfig)
		if err != nil {
			return err
		}
		logger.Info("reindex complete", "dataset_id", payload.DatasetID, "mode", payload.Mode, "migrated", migrated)
		return nil
	}

	sup := supervisor.New(types.QueueReindex, stores.Fabric, handle, logger)
	go func() {
		<-ctx.Done()
		sup.Stop()
	}()
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("supervisor exited", "error", err)
	}
}
