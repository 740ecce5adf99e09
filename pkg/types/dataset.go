// Package types provides the core data structures shared across the
// retrieval platform: datasets, chunks, groups, files, boosts, vector
// points, and the queue message envelope.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a billing/ownership boundary that owns zero or more
// datasets.
type Organization struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PlanTier    string    `json:"plan_tier"`
	DatasetCeil int       `json:"dataset_ceiling"`
	CreatedAt   time.Time `json:"created_at"`
}

// DatasetConfig is the per-dataset configuration snapshot: embedding
// model, BM25 parameters, and feature toggles. A copy of this struct
// travels with every ingest/search message so workers never need a
// live MetaStore round-trip to learn how to embed or score a batch.
type DatasetConfig struct {
	EmbeddingModel  string  `json:"embedding_model"`
	EmbeddingURL    string  `json:"embedding_base_url"`
	EmbeddingSize   int     `json:"embedding_size"`
	BM25Enabled     bool    `json:"bm25_enabled"`
	BM25AvgLen      float64 `json:"bm25_avg_len"`
	BM25B           float64 `json:"bm25_b"`
	BM25K           float64 `json:"bm25_k"`
	FulltextEnabled bool    `json:"fulltext_enabled"`
	SemanticEnabled bool    `json:"semantic_enabled"`
	// CollisionsEnabled and DuplicateDistanceThreshold together gate
	// duplicate-shadow collapse (spec invariant I2). Both must hold;
	// see DESIGN.md's Open Question decision on the AND vs OR predicate.
	CollisionsEnabled         bool    `json:"collisions_enabled"`
	DuplicateDistanceThresh   float64 `json:"duplicate_distance_threshold"`
	LLMBaseURL                string  `json:"llm_base_url,omitempty"`
	LLMModel                  string  `json:"llm_model,omitempty"`
	// MetadataSchema is an optional per-dataset JSON schema used only
	// for soft validation warnings at ingest time (supplemental
	// feature, never enforced as a hard failure).
	MetadataSchema string `json:"metadata_schema,omitempty"`
}

// DefaultDatasetConfig fills in the documented defaults for any field
// missing from a caller-supplied config (spec §4.3 edge case: "Missing
// dataset config field -> use documented default").
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		EmbeddingModel:          "text-embedding-3-small",
		EmbeddingSize:           1536,
		BM25Enabled:             false,
		BM25AvgLen:              256,
		BM25B:                   0.75,
		BM25K:                   1.2,
		FulltextEnabled:         true,
		SemanticEnabled:         true,
		CollisionsEnabled:       false,
		DuplicateDistanceThresh: 1.1,
	}
}

// CollectionShape is the deterministic key used to decide which
// VectorStore collection a dataset's points live in: datasets that
// share an embedding dimension and BM25 parameters share a
// collection, resolving the ambiguity the source left implicit (see
// DESIGN.md's Open Question decision).
type CollectionShape struct {
	EmbeddingSize int
	BM25Enabled   bool
	BM25B         float64
	BM25K         float64
}

// ShapeOf derives the collection shape from a dataset config.
func ShapeOf(cfg DatasetConfig) CollectionShape {
	return CollectionShape{
		EmbeddingSize: cfg.EmbeddingSize,
		BM25Enabled:   cfg.BM25Enabled,
		BM25B:         cfg.BM25B,
		BM25K:         cfg.BM25K,
	}
}

// Dataset is a tenant-scoped namespace owned by an organization.
type Dataset struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	TrackingID     *string        `json:"tracking_id,omitempty"`
	Config         DatasetConfig  `json:"server_configuration"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

// SoftDeleted reports whether the dataset row is a delete marker
// retained until the Deleter finishes its cascade.
func (d Dataset) SoftDeleted() bool {
	return d.DeletedAt != nil
}
