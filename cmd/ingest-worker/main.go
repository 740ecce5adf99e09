// Command ingest-worker claims ingest_chunks messages off the
// ingestion queue and runs them through the ingest pipeline.
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
	"retrieval-platform/internal/ingest"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/supervisor"
	"retrieval-platform/pkg/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level)).WithComponent("ingest-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.Connect(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect stores: %v", err)
	}
	defer stores.Close()

	pipeline := ingest.New(stores.Meta, stores.Vectors, stores.Dense, stores.Sparse, stores.BM25, stores.Analytics, logger)

	handle := func(ctx context.Context, msg types.QueueMessage) error {
		var payload types.IngestChunksPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return apierrors.Wrap(apierrors.Inconsistency, "decode ingest payload", err)
		}
		result, err := pipeline.IngestBatch(ctx, payload.DatasetID, payload.DatasetConfig, payload.Chunks)
		if err != nil {
			return err
		}
		logger.Info("ingested batch", "dataset_id", payload.DatasetID, "ingested", result.Ingested, "collided", result.Collided)
		return nil
	}

	sup := supervisor.New(types.QueueIngestion, stores.Fabric, handle, logger)
	go func() {
		<-ctx.Done()
		sup.Stop()
	}()
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("supervisor exited", "error", err)
	}
}
