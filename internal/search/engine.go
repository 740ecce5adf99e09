package search

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"retrieval-platform/internal/analytics"
	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/bktree"
	"retrieval-platform/internal/embedder"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/metastore"
	"retrieval-platform/internal/vectorstore"
	"retrieval-platform/pkg/types"
)

// defaultPageSize applies when a request leaves page_size unset or
// non-positive.
const defaultPageSize = 10

// maxFetchLimit caps how deep a page request can reach into each
// branch: offset+page_size is clamped to this before it's used as the
// per-branch VectorStore query limit, so a very high page number
// can't force an unbounded scan.
const maxFetchLimit = 1000

// Reranker reorders a fused result list using a cross-encoder or
// other joint query/document scorer. Implementations call out to an
// inference service; tests can substitute a no-op or a fixture.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []types.SearchResult) ([]types.SearchResult, error)
}

// Engine runs hybrid search across the branches a dataset enables.
type Engine struct {
	meta      *metastore.Store
	vectors   *vectorstore.Store
	dense     *embedder.DenseEmbedder
	sparse    *embedder.SparseEmbedder
	bm25      *embedder.BM25Embedder
	typoTree  *bktree.Cache
	reranker  Reranker
	analytics *analytics.Pipe
	logger    logging.Logger
}

// New constructs an Engine. reranker and an may be nil: a nil
// reranker serves Rerank requests from RRF order alone, and a nil
// analytics pipe simply skips event emission.
func New(meta *metastore.Store, vectors *vectorstore.Store, dense *embedder.DenseEmbedder, sparse *embedder.SparseEmbedder, bm25 *embedder.BM25Embedder, typoTree *bktree.Cache, reranker Reranker, an *analytics.Pipe, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Engine{meta: meta, vectors: vectors, dense: dense, sparse: sparse, bm25: bm25, typoTree: typoTree, reranker: reranker, analytics: an, logger: logger}
}

// Search runs the full pipeline: query parsing, typo correction,
// branch fan-out, fusion, optional rerank, sort, pagination, total-page
// counting, and analytics emission (spec.md §4.5 steps 1-7).
func (e *Engine) Search(ctx context.Context, datasetCfg types.DatasetConfig, req types.SearchRequest) (types.SearchResponse, error) {
	start := time.Now()

	pq := parseQuery(req.Query, req.UseQuoteNegatedTerms, req.RemoveStopWords)
	query := pq.Text

	var corrected *string
	if req.UseTypoCorrection && e.typoTree != nil {
		fixed, changed := bktree.CorrectQuery(ctx, e.typoTree, req.DatasetID, query, nil)
		if changed {
			corrected = &fixed
			query = fixed
		}
	}

	pageSize := req.Limit
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize
	fetchLimit := offset + pageSize
	if fetchLimit > maxFetchLimit {
		fetchLimit = maxFetchLimit
	}

	shape := types.ShapeOf(datasetCfg)
	modes := branchesFor(req.Mode, datasetCfg)
	if len(modes) == 0 {
		return types.SearchResponse{}, apierrors.New(apierrors.Validation, "no search branch is enabled for this dataset")
	}

	branches := make([]BranchResult, len(modes))
	g, gctx := errgroup.WithContext(ctx)
	for i, mode := range modes {
		i, mode := i, mode
		g.Go(func() error {
			hits, err := e.runBranch(gctx, shape, req.DatasetID, datasetCfg, mode, query, req.Filter, req.ScoreThreshold, fetchLimit)
			if err != nil {
				return err
			}
			branches[i] = BranchResult{Mode: mode, Hits: hits}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.SearchResponse{}, err
	}

	fusedHits := FuseRRF(branches, DefaultRRFConstant)
	if len(fusedHits) > fetchLimit {
		fusedHits = fusedHits[:fetchLimit]
	}

	results, err := e.hydrate(ctx, req.DatasetID, fusedHits)
	if err != nil {
		return types.SearchResponse{}, err
	}

	if req.Rerank && e.reranker != nil {
		results, err = e.reranker.Rerank(ctx, query, results)
		if err != nil {
			return types.SearchResponse{}, err
		}
	}

	results = filterRequiredNegated(results, pq.Required, pq.Negated)
	applySort(results, req.SortOptions)

	if offset < len(results) {
		end := offset + pageSize
		if end > len(results) {
			end = len(results)
		}
		results = results[offset:end]
	} else {
		results = nil
	}

	if req.SlimChunks {
		for i := range results {
			results[i].Chunk.Content = ""
		}
	}

	var totalPages int
	if req.GetTotalPages {
		ids, err := e.vectors.ScrollFilterIDs(ctx, shape, req.DatasetID, req.Filter)
		if err != nil {
			return types.SearchResponse{}, err
		}
		totalPages = (len(ids) + pageSize - 1) / pageSize
	}

	var topScore float64
	if len(results) > 0 {
		topScore = float64(results[0].Score)
	}
	if e.analytics != nil {
		e.analytics.Emit(analytics.Event{
			Kind:      "search_performed",
			DatasetID: req.DatasetID,
			Count:     len(results),
			ExtraMs:   float64(time.Since(start).Microseconds()) / 1000,
			Query:     req.Query,
			TopScore:  topScore,
			At:        start,
		})
	}

	return types.SearchResponse{Results: results, CorrectedQuery: corrected, TotalChunks: totalPages}, nil
}

func branchesFor(mode types.SearchMode, cfg types.DatasetConfig) []types.SearchMode {
	switch mode {
	case types.SearchSemantic:
		if cfg.SemanticEnabled {
			return []types.SearchMode{types.SearchSemantic}
		}
	case types.SearchFulltext:
		if cfg.FulltextEnabled {
			return []types.SearchMode{types.SearchFulltext}
		}
	case types.SearchBM25:
		if cfg.BM25Enabled {
			return []types.SearchMode{types.SearchBM25}
		}
	case types.SearchHybrid, "":
		var out []types.SearchMode
		if cfg.SemanticEnabled {
			out = append(out, types.SearchSemantic)
		}
		if cfg.FulltextEnabled {
			out = append(out, types.SearchFulltext)
		}
		if cfg.BM25Enabled {
			out = append(out, types.SearchBM25)
		}
		return out
	}
	return nil
}

func (e *Engine) runBranch(ctx context.Context, shape types.CollectionShape, datasetID uuid.UUID, cfg types.DatasetConfig, mode types.SearchMode, query string, filter types.ChunkFilter, threshold *float32, limit int) ([]types.ScoredChunk, error) {
	switch mode {
	case types.SearchSemantic:
		vecs, err := e.dense.GenerateBatch(ctx, []string{query})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, nil
		}
		return e.vectors.Query(ctx, shape, datasetID, types.VectorDense, vecs[0], nil, filter, limit, threshold)
	case types.SearchFulltext:
		sparse, err := e.sparse.GenerateBatch(ctx, []string{query})
		if err != nil {
			return nil, err
		}
		if len(sparse) == 0 || sparse[0] == nil {
			return nil, nil
		}
		return e.vectors.Query(ctx, shape, datasetID, types.VectorSparse, nil, sparse[0], filter, limit, threshold)
	case types.SearchBM25:
		vecs := e.bm25.GenerateBatch([]string{query}, cfg)
		if len(vecs) == 0 || vecs[0] == nil {
			return nil, nil
		}
		return e.vectors.Query(ctx, shape, datasetID, types.VectorBM25, nil, vecs[0], filter, limit, threshold)
	default:
		return nil, apierrors.New(apierrors.Validation, "unknown search branch "+string(mode))
	}
}

func (e *Engine) hydrate(ctx context.Context, datasetID uuid.UUID, hits []types.ScoredChunk) ([]types.SearchResult, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(hits))
	scoreByID := make(map[uuid.UUID]float32, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
		scoreByID[h.ChunkID] = h.Score
	}

	chunks, err := e.meta.GetChunksByID(ctx, datasetID, ids)
	if err != nil {
		return nil, err
	}

	out := make([]types.SearchResult, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, types.SearchResult{Chunk: c, Score: scoreByID[c.ID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
