package bktree

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/kvcache"
)

func redisKey(datasetID uuid.UUID) string {
	return fmt.Sprintf("bk_tree_%s", datasetID)
}

// Save gzip-compresses and stores t under the dataset's key with no
// expiry; the tree is rebuilt wholesale by the next build_bktree
// message rather than incrementally aged out.
func Save(ctx context.Context, kv *kvcache.Client, datasetID uuid.UUID, t *Tree) error {
	blob, err := t.Marshal()
	if err != nil {
		return err
	}
	if err := kv.Set(ctx, redisKey(datasetID), blob, 0); err != nil {
		return apierrors.Wrap(apierrors.Transient, "save bktree", err)
	}
	return nil
}

// Load fetches and decompresses the tree stored for a dataset.
func Load(ctx context.Context, kv *kvcache.Client, datasetID uuid.UUID) (*Tree, error) {
	blob, err := kv.Get(ctx, redisKey(datasetID))
	if err != nil {
		if kvcache.IsNil(err) {
			return nil, apierrors.New(apierrors.Validation, "no bktree stored for dataset")
		}
		return nil, apierrors.Wrap(apierrors.Transient, "load bktree", err)
	}
	return Unmarshal(blob)
}
