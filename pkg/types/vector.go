package types

import "github.com/google/uuid"

// SparseVector is a SPLADE-style bag of (token index, weight) pairs.
// Indices must be sorted ascending; the vector store maps this
// directly onto Qdrant's named sparse vector representation.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// VectorPoint is everything the VectorStore needs to upsert a single
// chunk: the point ID shared with the relational row, the named
// vectors it carries, and the payload used for server-side filtering.
type VectorPoint struct {
	ID uuid.UUID `json:"id"`

	// Dense is the semantic embedding, present when the dataset config
	// has SemanticEnabled.
	Dense []float32 `json:"dense,omitempty"`
	// Sparse is the SPLADE-style embedding, present when the dataset
	// config has FulltextEnabled and the embedder produces one.
	Sparse *SparseVector `json:"sparse,omitempty"`
	// BM25 is the Okapi BM25 sparse vector, present only when
	// DatasetConfig.BM25Enabled is true.
	BM25 *SparseVector `json:"bm25,omitempty"`

	Payload map[string]any `json:"payload"`
}

// VectorName identifies which named vector in a Qdrant point a
// search or upsert call targets.
type VectorName string

const (
	VectorDense  VectorName = "dense"
	VectorSparse VectorName = "sparse"
	VectorBM25   VectorName = "bm25"
)

// MatchCondition is a single equality/range constraint in a chunk
// filter, translated by the vector store into a Qdrant field
// condition. The metastore has no filter translation.
type MatchCondition struct {
	Field string `json:"field"`
	// Exactly one of the following is set.
	MatchValue *string  `json:"match_value,omitempty"`
	MatchAny   []string `json:"match_any,omitempty"`
	Gte        *float64 `json:"gte,omitempty"`
	Lte        *float64 `json:"lte,omitempty"`
}

// ChunkFilter expresses the must/should/must_not boolean structure
// accepted by search and delete-by-filter requests.
type ChunkFilter struct {
	Must    []MatchCondition `json:"must,omitempty"`
	Should  []MatchCondition `json:"should,omitempty"`
	MustNot []MatchCondition `json:"must_not,omitempty"`
}

// Empty reports whether the filter carries no conditions at all.
func (f ChunkFilter) Empty() bool {
	return len(f.Must) == 0 && len(f.Should) == 0 && len(f.MustNot) == 0
}

// SearchMode selects which retrieval branch(es) a search fans out to.
type SearchMode string

const (
	SearchSemantic SearchMode = "semantic"
	SearchFulltext SearchMode = "fulltext"
	SearchBM25     SearchMode = "bm25"
	SearchHybrid   SearchMode = "hybrid"
)

// SearchRequest is the caller-facing query shape.
type SearchRequest struct {
	DatasetID         uuid.UUID   `json:"dataset_id"`
	Query             string      `json:"query"`
	Mode              SearchMode  `json:"search_type"`
	Page              int         `json:"page"`
	Filter            ChunkFilter `json:"filters,omitempty"`
	Limit             int         `json:"page_size"`
	SortOptions       SortOptions `json:"sort_options,omitempty"`
	ScoreThreshold    *float32    `json:"score_threshold,omitempty"`
	UseTypoCorrection bool        `json:"typo_correction,omitempty"`
	Rerank            bool        `json:"rerank,omitempty"`
	// UseQuoteNegatedTerms, when set, extracts "quoted phrases" as
	// required substrings and -prefixed tokens as negated substrings
	// before the query is embedded.
	UseQuoteNegatedTerms bool `json:"use_quote_negated_terms,omitempty"`
	// RemoveStopWords strips common stop words from the query before
	// embedding, unless doing so would empty it entirely.
	RemoveStopWords bool `json:"remove_stop_words,omitempty"`
	// SlimChunks, when set, makes the engine blank each result's chunk
	// content in the response.
	SlimChunks bool `json:"slim_chunks,omitempty"`
	// GetTotalPages requests an extra filter-only count query so the
	// response can report TotalChunks as a real page count.
	GetTotalPages bool `json:"get_total_pages,omitempty"`
}

// SortStrategy selects how SearchEngine orders its final, fused
// result page.
type SortStrategy string

const (
	// SortByScore orders by descending fused/rerank score (the default).
	SortByScore SortStrategy = "score"
	// SortByRecency orders by descending chunk timestamp.
	SortByRecency SortStrategy = "recency"
	// SortByNumValue orders by descending Chunk.NumValue.
	SortByNumValue SortStrategy = "num_value"
	// SortByGeoDistance orders by ascending distance from GeoReference.
	SortByGeoDistance SortStrategy = "geo_distance"
)

// SortOptions controls the final ordering of a search's result page.
type SortOptions struct {
	Strategy     SortStrategy `json:"strategy,omitempty"`
	GeoReference *GeoPoint    `json:"geo_reference,omitempty"`
}

// ScoredChunk pairs a chunk with its rank score from one branch of a
// search fan-out, before fusion.
type ScoredChunk struct {
	ChunkID uuid.UUID `json:"chunk_id"`
	Score   float32   `json:"score"`
}

// SearchResult is a hydrated, fused, optionally-reranked hit.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// SearchResponse is the full response to a search request, including
// the corrected query string when typo correction fired.
type SearchResponse struct {
	Results        []SearchResult `json:"chunks"`
	CorrectedQuery *string        `json:"corrected_query,omitempty"`
	TotalChunks    int            `json:"total_chunk_pages"`
}
