package types

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QueueName enumerates the Redis lists the fabric moves work through.
// Each has a matching "<name>_processing" claim list and a shared
// "<name>_dead_letters" list for attempts that exhaust MaxAttempts.
type QueueName string

const (
	QueueIngestion     QueueName = "ingestion"
	QueueDelete        QueueName = "delete_dataset"
	QueueBKTreeCreate  QueueName = "bktree_creation"
	QueueReindex       QueueName = "reindex"
	QueueFileProcess   QueueName = "file_processing"
	QueueCrawl         QueueName = "crawl"
	QueueGroupUpdate   QueueName = "group_update"
)

// ProcessingListFor returns the in-flight claim list name for a queue.
func ProcessingListFor(q QueueName) string { return string(q) + "_processing" }

// DeadLetterListFor returns the dead-letter list name for a queue.
func DeadLetterListFor(q QueueName) string { return string(q) + "_dead_letters" }

// MaxAttempts is the bounded-retry ceiling shared by every queue: a
// message that fails processing on its third attempt is dead-lettered
// instead of requeued.
const MaxAttempts = 3

// QueueMessage is the envelope every worker reads off a queue. Payload
// is deserialized according to Type once the envelope itself is
// decoded, mirroring the tagged-union shape the source system's queue
// messages used.
type QueueMessage struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"message_type"`
	AttemptNumber int             `json:"attempt_number"`
	Payload       json.RawMessage `json:"payload"`
}

// IngestChunksPayload is the Type == "ingest_chunks" payload.
type IngestChunksPayload struct {
	DatasetID     uuid.UUID       `json:"dataset_id"`
	DatasetConfig DatasetConfig   `json:"dataset_config"`
	Chunks        []IngestChunkReq `json:"chunks"`
	UpsertByTrackingID bool       `json:"upsert_by_tracking_id"`
}

// DeleteDatasetPayload is the Type == "delete_dataset" payload.
type DeleteDatasetPayload struct {
	DatasetID uuid.UUID `json:"dataset_id"`
}

// DeleteChunksByFilterPayload is the Type == "delete_chunks" payload.
type DeleteChunksByFilterPayload struct {
	DatasetID uuid.UUID   `json:"dataset_id"`
	Filter    ChunkFilter `json:"filter"`
}

// BuildBKTreePayload is the Type == "build_bktree" payload.
type BuildBKTreePayload struct {
	DatasetID uuid.UUID `json:"dataset_id"`
}

// ReindexMode selects how the Reindexer transforms existing points.
type ReindexMode string

const (
	ReindexAddBM25  ReindexMode = "add_bm25"
	ReindexReembed  ReindexMode = "reembed"
)

// ReindexPayload is the Type == "reindex" payload.
type ReindexPayload struct {
	DatasetID   uuid.UUID     `json:"dataset_id"`
	Mode        ReindexMode   `json:"mode"`
	NewConfig   DatasetConfig `json:"new_config"`
}

// FileProcessPayload is the Type == "process_file" payload.
type FileProcessPayload struct {
	DatasetID uuid.UUID `json:"dataset_id"`
	FileID    uuid.UUID `json:"file_id"`
	BlobKey   string    `json:"blob_key"`
	MimeType  string    `json:"mime_type"`
}
