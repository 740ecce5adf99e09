// Package ingest implements the chunk ingestion pipeline: embed each
// chunk (dense, sparse, and/or BM25 depending on dataset config),
// collapse near-duplicates into the existing canonical chunk, bulk
// insert into the metastore, bulk upsert into the vector store, and
// emit analytics events. The duplicate-collapse flow mirrors the
// source system's ingestion microservice.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"retrieval-platform/internal/analytics"
	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/embedder"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/metastore"
	"retrieval-platform/internal/vectorstore"
	"retrieval-platform/pkg/types"
)

// Pipeline wires the stores and embedders an ingest worker needs.
type Pipeline struct {
	meta      *metastore.Store
	vectors   *vectorstore.Store
	dense     *embedder.DenseEmbedder
	sparse    *embedder.SparseEmbedder
	bm25      *embedder.BM25Embedder
	analytics *analytics.Pipe
	logger    logging.Logger
}

// New constructs a Pipeline.
func New(meta *metastore.Store, vectors *vectorstore.Store, dense *embedder.DenseEmbedder, sparse *embedder.SparseEmbedder, bm25 *embedder.BM25Embedder, an *analytics.Pipe, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Pipeline{meta: meta, vectors: vectors, dense: dense, sparse: sparse, bm25: bm25, analytics: an, logger: logger}
}

// Result summarizes what an ingest batch did, returned so the caller
// can report ingested/collided counts back to the operator.
type Result struct {
	Ingested int
	Collided int
}

// IngestBatch runs the full pipeline for a batch of chunks belonging
// to one dataset.
func (p *Pipeline) IngestBatch(ctx context.Context, datasetID uuid.UUID, cfg types.DatasetConfig, reqs []types.IngestChunkReq) (Result, error) {
	if len(reqs) == 0 {
		return Result{}, nil
	}

	texts := make([]string, len(reqs))
	for i, r := range reqs {
		texts[i] = r.Content
	}

	dense, err := p.embedDense(ctx, cfg, reqs, texts)
	if err != nil {
		return Result{}, err
	}

	var sparse []*types.SparseVector
	if cfg.FulltextEnabled {
		sparse, err = p.sparse.GenerateBatch(ctx, texts)
		if err != nil {
			return Result{}, apierrors.Wrap(apierrors.Transient, "generate sparse vectors", err)
		}
	}

	var bm25 []*types.SparseVector
	if cfg.BM25Enabled {
		bm25 = p.bm25.GenerateBatch(texts, cfg)
	}

	shape := types.ShapeOf(cfg)
	if err := p.vectors.EnsureCollection(ctx, shape); err != nil {
		return Result{}, err
	}

	now := time.Now()
	chunks := make([]types.Chunk, 0, len(reqs))
	points := make([]types.VectorPoint, 0, len(reqs))
	collided := 0

	for i, req := range reqs {
		var vec []float32
		if i < len(dense) {
			vec = dense[i]
		}

		collisionID, err := p.findCollision(ctx, shape, datasetID, cfg, vec)
		if err != nil {
			return Result{}, err
		}

		id := uuid.New()
		chunk := types.Chunk{
			ID:             id,
			DatasetID:      datasetID,
			TrackingID:     req.TrackingID,
			Content:        req.Content,
			Link:           req.Link,
			Tags:           req.Tags,
			Metadata:       req.Metadata,
			ContentGroupID: req.ContentGroupID,
			Weight:         req.Weight,
			NumValue:       req.NumValue,
			TimeStamp:      req.TimeStamp,
			Location:       req.Location,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if collisionID != nil {
			chunk.ID = *collisionID
			chunk.CollisionOf = collisionID
			collided++
		}

		chunks = append(chunks, chunk)

		if chunk.ContentGroupID != nil {
			chunk.GroupIDs = []uuid.UUID{*chunk.ContentGroupID}
		}

		point := types.VectorPoint{
			ID:      chunk.ID,
			Dense:   vec,
			Payload: types.ChunkPayload(chunk),
		}
		if sparse != nil && i < len(sparse) {
			point.Sparse = sparse[i]
		}
		if bm25 != nil && i < len(bm25) {
			point.BM25 = bm25[i]
		}
		points = append(points, point)
	}

	if err := p.meta.BulkUpsertChunks(ctx, chunks, true); err != nil {
		return Result{}, err
	}
	if err := p.vectors.UpsertPoints(ctx, shape, datasetID, points); err != nil {
		return Result{}, err
	}
	if p.analytics != nil {
		p.analytics.Emit(analytics.Event{
			Kind:      "chunks_ingested",
			DatasetID: datasetID,
			Count:     len(chunks),
			At:        now,
		})
	}

	return Result{Ingested: len(chunks) - collided, Collided: collided}, nil
}

func (p *Pipeline) embedDense(ctx context.Context, cfg types.DatasetConfig, reqs []types.IngestChunkReq, texts []string) ([][]float32, error) {
	if !cfg.SemanticEnabled {
		return make([][]float32, len(reqs)), nil
	}

	out := make([][]float32, len(reqs))
	var toEmbed []string
	var indices []int
	for i, r := range reqs {
		if len(r.DenseVector) > 0 {
			out[i] = r.DenseVector
			continue
		}
		toEmbed = append(toEmbed, texts[i])
		indices = append(indices, i)
	}
	if len(toEmbed) == 0 {
		return out, nil
	}
	vecs, err := p.dense.GenerateBatch(ctx, toEmbed)
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		out[indices[i]] = v
	}
	return out, nil
}

// findCollision looks for an existing canonical point within the
// dataset's duplicate-distance threshold. Collapse requires both
// CollisionsEnabled and a threshold greater than 1.0: the source
// worker's original predicate ORs these two conditions, which lets a
// dataset with collisions disabled still collapse duplicates purely
// because its threshold happens to exceed 1.0. DESIGN.md records this
// as a resolved Open Question; this is the corrected AND form.
func (p *Pipeline) findCollision(ctx context.Context, shape types.CollectionShape, datasetID uuid.UUID, cfg types.DatasetConfig, vec []float32) (*uuid.UUID, error) {
	if !cfg.CollisionsEnabled || cfg.DuplicateDistanceThresh <= 1.0 || len(vec) == 0 {
		return nil, nil
	}

	matches, err := p.vectors.Query(ctx, shape, datasetID, types.VectorDense, vec, nil, types.ChunkFilter{}, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	top := matches[0]
	if float64(top.Score) < cfg.DuplicateDistanceThresh {
		return nil, nil
	}

	existing, err := p.meta.GetChunksByID(ctx, datasetID, []uuid.UUID{top.ChunkID})
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		// The vector point outlived its relational row; best-effort clean
		// it up and treat this as no collision rather than fail ingestion.
		_ = p.vectors.DeletePoints(ctx, shape, []uuid.UUID{top.ChunkID})
		return nil, nil
	}
	return &top.ChunkID, nil
}
