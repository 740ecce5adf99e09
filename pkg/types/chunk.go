package types

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is the atomic unit of retrieval: a piece of content belonging
// to a dataset, optionally tagged with a tracking ID supplied by the
// caller for idempotent re-ingestion.
type Chunk struct {
	ID             uuid.UUID         `json:"id"`
	DatasetID      uuid.UUID         `json:"dataset_id"`
	TrackingID     *string           `json:"tracking_id,omitempty"`
	Content        string            `json:"chunk_html"`
	Link           *string           `json:"link,omitempty"`
	Tags           []string          `json:"tag_set,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	// ContentGroupID, when set, assigns this chunk to a group at
	// ingest time rather than through a separate bookmark call.
	ContentGroupID *uuid.UUID `json:"content_group_id,omitempty"`
	Weight         float64    `json:"weight"`
	// CollisionOf points at the canonical chunk this one was collapsed
	// into by duplicate detection (spec invariant I2). Nil when this
	// chunk is itself canonical.
	CollisionOf *uuid.UUID `json:"collision_of,omitempty"`
	NumValue    *float64   `json:"num_value,omitempty"`
	TimeStamp   *time.Time `json:"time_stamp,omitempty"`
	Location    *GeoPoint  `json:"location,omitempty"`
	// GroupIDs holds the group assigned at ingest via ContentGroupID;
	// groups the chunk is later bookmarked into are not added to it. It
	// is the source for the VectorStore payload's group_ids filter
	// field.
	GroupIDs  []uuid.UUID `json:"group_ids,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// GeoPoint is a latitude/longitude pair, stored in MetaStore as two
// float columns and in VectorStore as a geo-indexed payload field.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsCollision reports whether this chunk was collapsed into a
// previously-ingested canonical chunk.
func (c Chunk) IsCollision() bool {
	return c.CollisionOf != nil
}

// ChunkPayload builds the VectorStore payload for c: every scalar
// field spec.md §6 requires indexed for filter pushdown
// (tag_set/link/num_value/time_stamp/metadata.*/location/group_ids/
// content), plus the content_group_id and tracking_id fields used by
// bookmarking and tracking-id lookup. Shared by the ingest pipeline
// and the reindexer so a migrated point's payload never drifts from a
// freshly-ingested one.
func ChunkPayload(c Chunk) map[string]any {
	payload := map[string]any{
		"content": c.Content,
	}
	if c.ContentGroupID != nil {
		payload["content_group_id"] = c.ContentGroupID.String()
	}
	if c.TrackingID != nil {
		payload["tracking_id"] = *c.TrackingID
	}
	if len(c.Tags) > 0 {
		payload["tag_set"] = c.Tags
	}
	if c.Link != nil {
		payload["link"] = *c.Link
	}
	if c.NumValue != nil {
		payload["num_value"] = *c.NumValue
	}
	if c.TimeStamp != nil {
		payload["time_stamp"] = c.TimeStamp.Unix()
	}
	if c.Location != nil {
		payload["location"] = map[string]any{"lat": c.Location.Lat, "lon": c.Location.Lon}
	}
	if len(c.GroupIDs) > 0 {
		ids := make([]string, len(c.GroupIDs))
		for i, id := range c.GroupIDs {
			ids[i] = id.String()
		}
		payload["group_ids"] = ids
	}
	for k, v := range c.Metadata {
		payload["metadata."+k] = v
	}
	return payload
}

// IngestChunkReq is the caller-facing shape of a single chunk to
// ingest; it omits server-assigned fields (ID, timestamps) present on
// the stored Chunk.
type IngestChunkReq struct {
	TrackingID     *string        `json:"tracking_id,omitempty"`
	Content        string         `json:"chunk_html"`
	Link           *string        `json:"link,omitempty"`
	Tags           []string       `json:"tag_set,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ContentGroupID *uuid.UUID     `json:"content_group_id,omitempty"`
	Weight         float64        `json:"weight,omitempty"`
	NumValue       *float64       `json:"num_value,omitempty"`
	TimeStamp      *time.Time     `json:"time_stamp,omitempty"`
	Location       *GeoPoint      `json:"location,omitempty"`
	// DenseVector lets a caller supply a precomputed embedding,
	// bypassing the Embedder for this chunk (spec §4.3 edge case).
	DenseVector []float32 `json:"dense_vector,omitempty"`
}

// Group clusters chunks for scoped retrieval and navigation (e.g. "all
// chunks from document X").
type Group struct {
	ID          uuid.UUID `json:"id"`
	DatasetID   uuid.UUID `json:"dataset_id"`
	TrackingID  *string   `json:"tracking_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GroupBookmark is the many-to-many join between chunks and groups.
type GroupBookmark struct {
	ChunkID uuid.UUID `json:"chunk_id"`
	GroupID uuid.UUID `json:"group_id"`
}

// File is an uploaded source document that chunks may cite back to
// via File.ID, stored in the blob store and indexed for retrieval
// after synchronous or asynchronous chunking.
type File struct {
	ID          uuid.UUID `json:"id"`
	DatasetID   uuid.UUID `json:"dataset_id"`
	FileName    string    `json:"file_name"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	BlobKey     string    `json:"blob_key"`
	CreatedAt   time.Time `json:"created_at"`
}

// Boost biases ranking for chunks matching a phrase, independent of
// base relevance score.
type Boost struct {
	ChunkID     uuid.UUID `json:"chunk_id"`
	Phrase      string    `json:"phrase"`
	FullTextBoost float64 `json:"fulltext_boost"`
	SemanticBoost float64 `json:"semantic_boost"`
	Distance      float64 `json:"distance_boost"`
}
