// Command bktree-worker claims build_bktree messages, walks every
// chunk in the named dataset, and rebuilds the dataset's typo
// correction tree from scratch before saving it to Redis and evicting
// the entry from its own in-process cache. Other processes' caches
// (search-api's) keep any tree they hold until its 24h TTL expires.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"unicode"

	"github.com/google/uuid"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/bktree"
	"retrieval-platform/internal/bootstrap"
	"retrieval-platform/internal/config"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/supervisor"
	"retrieval-platform/pkg/types"
)

const scrollBatchSize = 500

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Logging.Level)).WithComponent("bktree-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, err := bootstrap.Connect(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect stores: %v", err)
	}
	defer stores.Close()

	handle := func(ctx context.Context, msg types.QueueMessage) error {
		var payload types.BuildBKTreePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return apierrors.Wrap(apierrors.Inconsistency, "decode build_bktree payload", err)
		}

		tree := bktree.New()
		after := uuid.Nil
		for {
			chunks, err := stores.Meta.ScrollChunks(ctx, payload.DatasetID, after, scrollBatchSize)
			if err != nil {
				return err
			}
			if len(chunks) == 0 {
				break
			}
			for _, c := range chunks {
				for _, word := range tokenizeWords(c.Content) {
					tree.Insert(word)
				}
				after = c.ID
			}
			if len(chunks) < scrollBatchSize {
				break
			}
		}

		if err := bktree.Save(ctx, stores.KV, payload.DatasetID, tree); err != nil {
			return err
		}
		stores.TypoCache.Invalidate(payload.DatasetID)
		logger.Info("rebuilt bktree", "dataset_id", payload.DatasetID, "words", tree.Size())
		return nil
	}

	sup := supervisor.New(types.QueueBKTreeCreate, stores.Fabric, handle, logger)
	go func() {
		<-ctx.Done()
		sup.Stop()
	}()
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("supervisor exited", "error", err)
	}
}

func tokenizeWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
