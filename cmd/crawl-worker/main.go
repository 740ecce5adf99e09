// Command crawl-worker claims crawl messages. Page fetch and HTML
// extraction are delegated to an external crawler service; this
// worker's job is limited to turning a crawled page's extracted text
// into an ingest_chunks message, mirroring file-worker's shape.
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
	"retrieval-platform/internal/filechunk"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/supervisor"
	"retrieval-platform/pkg/types"
)

// crawlPayload is the Type == "crawl_page" payload: a single already
// fetched page's URL, extracted text, and owning dataset.
type crawlPayload struct {
	DatasetID uuid.UUID `json:"dataset_id"`
	URL       string    `json:"url"`
	Text      string    `json:"text"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level)).WithComponent("crawl-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.Connect(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect stores: %v", err)
	}
	defer stores.Close()

	handle := func(ctx context.Context, msg types.QueueMessage) error {
		var payload crawlPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return apierrors.Wrap(apierrors.Inconsistency, "decode crawl payload", err)
		}

		dataset, err := stores.Meta.GetDataset(ctx, payload.DatasetID)
		if err != nil {
			return err
		}

		segments := filechunk.Split(payload.Text, filechunk.DefaultMaxChunkLength)
		reqs := make([]types.IngestChunkReq, 0, len(segments))
		for _, seg := range segments {
			link := payload.URL
			reqs = append(reqs, types.IngestChunkReq{Content: seg, Link: &link})
		}

		if err := stores.Fabric.Enqueue(ctx, types.QueueIngestion, "ingest_chunks", types.IngestChunksPayload{
			DatasetID:     payload.DatasetID,
			DatasetConfig: dataset.Config,
			Chunks:        reqs,
		}); err != nil {
			return err
		}

		logger.Info("crawled page enqueued", "url", payload.URL, "segments", len(segments))
		return nil
	}

	sup := supervisor.New(types.QueueCrawl, stores.Fabric, handle, logger)
	go func() {
		<-ctx.Done()
		sup.Stop()
	}()
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("supervisor exited", "error", err)
	}
}
