// Package deleter implements dataset- and filter-scoped chunk
// deletion: batched transactional removal from both the metastore and
// the vector store, safe to re-run to completion after a crash since
// every step is idempotent against an already-deleted row.
package deleter

import (
	"context"

	"github.com/google/uuid"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/metastore"
	"retrieval-platform/internal/vectorstore"
	"retrieval-platform/pkg/types"
)

// batchSize bounds how many chunks a single delete transaction
// touches, keeping a dataset-wide delete from holding one giant
// transaction open against the metastore.
const batchSize = 500

// Deleter wires the stores a delete worker needs.
type Deleter struct {
	meta    *metastore.Store
	vectors *vectorstore.Store
	logger  logging.Logger
}

// New constructs a Deleter.
func New(meta *metastore.Store, vectors *vectorstore.Store, logger logging.Logger) *Deleter {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Deleter{meta: meta, vectors: vectors, logger: logger}
}

// DeleteDataset removes every chunk belonging to a dataset batch by
// batch (MetaStore rows first, then the matching VectorStore points),
// sweeps any points left behind, then purges the dataset row itself.
// It does not mark the dataset soft-deleted: the API's delete route
// does that before enqueueing, and search and ingest do not check the
// marker.
func (d *Deleter) DeleteDataset(ctx context.Context, datasetID uuid.UUID) error {
	dataset, err := d.meta.GetDataset(ctx, datasetID)
	if err != nil {
		return err
	}
	shape := types.ShapeOf(dataset.Config)

	for {
		ids, err := d.meta.FindChunkIDsByDataset(ctx, datasetID, batchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			break
		}
		if err := d.meta.DeleteChunksByIDs(ctx, ids); err != nil {
			return err
		}
		if err := d.vectors.DeletePoints(ctx, shape, ids); err != nil {
			return err
		}
		d.logger.Debug("deleted chunk batch", "dataset_id", datasetID, "count", len(ids))
	}

	if err := d.vectors.DeleteByFilter(ctx, shape, datasetID, types.ChunkFilter{}); err != nil {
		return err
	}
	return d.meta.PurgeDataset(ctx, datasetID)
}

// DeleteByFilter removes every chunk in dataset matching filter from
// both stores. Unlike DeleteDataset this does not touch the dataset
// row itself.
func (d *Deleter) DeleteByFilter(ctx context.Context, datasetID uuid.UUID, filter types.ChunkFilter) error {
	if filter.Empty() {
		return apierrors.New(apierrors.Validation, "delete by filter requires at least one condition")
	}
	dataset, err := d.meta.GetDataset(ctx, datasetID)
	if err != nil {
		return err
	}
	shape := types.ShapeOf(dataset.Config)

	ids, err := d.vectors.ScrollFilterIDs(ctx, shape, datasetID, filter)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := d.meta.DeleteChunksByIDs(ctx, ids); err != nil {
		return err
	}
	return d.vectors.DeleteByFilter(ctx, shape, datasetID, filter)
}
