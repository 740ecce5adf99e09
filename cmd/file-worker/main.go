// Command file-worker claims process_file messages, reads the
// uploaded blob, splits it into chunks, and re-enqueues an
// ingest_chunks message for the ingest worker. PDF/DOCX-to-text
// conversion is delegated to an external layout service and is out of
// scope here; this worker handles text and HTML content directly.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os/signal"
	"syscall"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/bootstrap"
	"retrieval-platform/internal/config"
	"retrieval-platform/internal/filechunk"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/supervisor"
	"retrieval-platform/pkg/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level)).WithComponent("file-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.Connect(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect stores: %v", err)
	}
	defer stores.Close()

	handle := func(ctx context.Context, msg types.QueueMessage) error {
		var payload types.FileProcessPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return apierrors.Wrap(apierrors.Inconsistency, "decode process_file payload", err)
		}

		dataset, err := stores.Meta.GetDataset(ctx, payload.DatasetID)
		if err != nil {
			return err
		}

		rc, err := stores.Blobs.Get(ctx, payload.BlobKey)
		if err != nil {
			return apierrors.Wrap(apierrors.Transient, "fetch file blob", err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return apierrors.Wrap(apierrors.Transient, "read file blob", err)
		}

		segments := filechunk.Split(string(content), filechunk.DefaultMaxChunkLength)
		reqs := make([]types.IngestChunkReq, 0, len(segments))
		for _, seg := range segments {
			reqs = append(reqs, types.IngestChunkReq{Content: seg})
		}

		if err := stores.Fabric.Enqueue(ctx, types.QueueIngestion, "ingest_chunks", types.IngestChunksPayload{
			DatasetID:          payload.DatasetID,
			DatasetConfig:      dataset.Config,
			Chunks:             reqs,
			UpsertByTrackingID: false,
		}); err != nil {
			return err
		}

		logger.Info("file split and enqueued", "file_id", payload.FileID, "segments", len(segments))
		return nil
	}

	sup := supervisor.New(types.QueueFileProcess, stores.Fabric, handle, logger)
	go func() {
		<-ctx.Done()
		sup.Stop()
	}()
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("supervisor exited", "error", err)
	}
}
