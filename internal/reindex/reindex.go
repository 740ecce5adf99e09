// Package reindex migrates an existing dataset's vector points onto a
// new collection shape without downtime: either adding BM25 vectors
// alongside the existing dense/sparse ones, or re-embedding with a
// new dense model/dimension entirely. Both modes page through the
// dataset via metastore keyset scroll, transform each batch, and
// upsert into the target collection, leaving the old collection
// readable until the last batch lands.
package reindex

import (
	"context"

	"github.com/google/uuid"

	"retrieval-platform/internal/embedder"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/metastore"
	"retrieval-platform/internal/vectorstore"
	"retrieval-platform/pkg/types"
)

const scrollBatchSize = 200

// Reindexer wires the stores and embedders a reindex worker needs.
type Reindexer struct {
	meta    *metastore.Store
	vectors *vectorstore.Store
	dense   *embedder.DenseEmbedder
	sparse  *embedder.SparseEmbedder
	bm25    *embedder.BM25Embedder
	logger  logging.Logger
}

// New constructs a Reindexer.
func New(meta *metastore.Store, vectors *vectorstore.Store, dense *embedder.DenseEmbedder, sparse *embedder.SparseEmbedder, bm25 *embedder.BM25Embedder, logger logging.Logger) *Reindexer {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Reindexer{meta: meta, vectors: vectors, dense: dense, sparse: sparse, bm25: bm25, logger: logger}
}

// Run migrates datasetID from its current config onto newConfig in
// the given mode, returning the number of points migrated.
func (r *Reindexer) Run(ctx context.Context, datasetID uuid.UUID, mode types.ReindexMode, newConfig types.DatasetConfig) (int, error) {
	dataset, err := r.meta.GetDataset(ctx, datasetID)
	if err != nil {
		return 0, err
	}
	sourceShape := types.ShapeOf(dataset.Config)
	targetShape := types.ShapeOf(newConfig)
	if err := r.vectors.EnsureCollection(ctx, targetShape); err != nil {
		return 0, err
	}

	migrated := 0
	var after uuid.UUID
	for {
		batch, err := r.meta.ScrollChunks(ctx, datasetID, after, scrollBatchSize)
		if err != nil {
			return migrated, err
		}
		if len(batch) == 0 {
			break
		}

		points, err := r.transformBatch(ctx, batch, mode, newConfig, sourceShape, targetShape)
		if err != nil {
			return migrated, err
		}
		if err := r.vectors.UpsertPoints(ctx, targetShape, datasetID, points); err != nil {
			return migrated, err
		}

		migrated += len(batch)
		after = batch[len(batch)-1].ID
		r.logger.Debug("reindexed batch", "dataset_id", datasetID, "migrated", migrated)

		if len(batch) < scrollBatchSize {
			break
		}
	}
	return migrated, nil
}

func (r *Reindexer) transformBatch(ctx context.Context, chunks []types.Chunk, mode types.ReindexMode, newConfig types.DatasetConfig, sourceShape, targetShape types.CollectionShape) ([]types.VectorPoint, error) {
	switch mode {
	case types.ReindexAddBM25:
		return r.addBM25(ctx, chunks, newConfig, sourceShape)
	case types.ReindexReembed:
		return r.reembed(ctx, chunks, newConfig)
	default:
		return nil, errUnknownMode(mode)
	}
}

// addBM25 keeps every existing named vector a point already carries —
// read back from the source collection, since the batch chunks
// themselves carry no vector data — and adds a newly computed BM25
// vector alongside them. Spec §4.8 step 2: enabling BM25 on a dataset
// must never drop its dense/sparse signals.
func (r *Reindexer) addBM25(ctx context.Context, chunks []types.Chunk, cfg types.DatasetConfig, sourceShape types.CollectionShape) ([]types.VectorPoint, error) {
	ids := make([]uuid.UUID, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	existing, err := r.vectors.GetPoints(ctx, sourceShape, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]types.VectorPoint, len(existing))
	for _, p := range existing {
		byID[p.ID] = p
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors := r.bm25.GenerateBatch(texts, cfg)

	out := make([]types.VectorPoint, len(chunks))
	for i, c := range chunks {
		p := byID[c.ID]
		p.ID = c.ID
		p.BM25 = vectors[i]
		p.Payload = types.ChunkPayload(c)
		out[i] = p
	}
	return out, nil
}

// reembed regenerates every HTTP-backed vector (dense always, sparse
// when FulltextEnabled) plus BM25 when enabled, and carries the
// source chunk's payload through unchanged — spec §4.8 Reembed mode
// and E2E scenario 5 both require the migrated payload be
// byte-identical to the source.
func (r *Reindexer) reembed(ctx context.Context, chunks []types.Chunk, cfg types.DatasetConfig) ([]types.VectorPoint, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	dense, err := r.dense.GenerateBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	var sparse []*types.SparseVector
	if cfg.FulltextEnabled {
		sparse, err = r.sparse.GenerateBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
	}
	var bm25 []*types.SparseVector
	if cfg.BM25Enabled {
		bm25 = r.bm25.GenerateBatch(texts, cfg)
	}
	out := make([]types.VectorPoint, len(chunks))
	for i, c := range chunks {
		p := types.VectorPoint{ID: c.ID, Payload: types.ChunkPayload(c)}
		if i < len(dense) {
			p.Dense = dense[i]
		}
		if sparse != nil {
			p.Sparse = sparse[i]
		}
		if bm25 != nil {
			p.BM25 = bm25[i]
		}
		out[i] = p
	}
	return out, nil
}

type errUnknownMode types.ReindexMode

func (e errUnknownMode) Error() string { return "unknown reindex mode: " + string(e) }
