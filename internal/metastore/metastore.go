// Package metastore is the PostgreSQL-backed relational store for
// datasets, chunks, group bookmarks, and boosts; it has no
// organization, group or file operations. It owns the source of truth for chunk metadata; the vector
// store holds only what search needs to rank and filter.
package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/pkg/types"
)

// Store wraps a *sql.DB with the platform's relational operations.
type Store struct {
	db *sql.DB
}

// New wraps an already-open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens a new PostgreSQL connection pool from a DSN.
func Open(dsn string, maxOpenConns, maxIdleConns int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Fatal, "open postgres", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertDataset inserts or updates a dataset row keyed by ID,
// overwriting its config on conflict.
func (s *Store) UpsertDataset(ctx context.Context, d types.Dataset) error {
	cfgJSON, err := json.Marshal(d.Config)
	if err != nil {
		return apierrors.Wrap(apierrors.Validation, "marshal dataset config", err)
	}
	const query = `
		INSERT INTO datasets (id, organization_id, tracking_id, server_configuration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			tracking_id = EXCLUDED.tracking_id,
			server_configuration = EXCLUDED.server_configuration,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, d.ID, d.OrganizationID, d.TrackingID, cfgJSON, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "upsert dataset", err)
	}
	return nil
}

// GetDataset fetches a dataset by ID. Soft-deleted datasets are still
// returned so the Deleter cascade can finish operating on them.
func (s *Store) GetDataset(ctx context.Context, id uuid.UUID) (types.Dataset, error) {
	const query = `
		SELECT id, organization_id, tracking_id, server_configuration, created_at, updated_at, deleted_at
		FROM datasets WHERE id = $1
	`
	var d types.Dataset
	var cfgJSON []byte
	row := s.db.QueryRowContext(ctx, query, id)
	if err := row.Scan(&d.ID, &d.OrganizationID, &d.TrackingID, &cfgJSON, &d.CreatedAt, &d.UpdatedAt, &d.DeletedAt); err != nil {
		if err == sql.ErrNoRows {
			return types.Dataset{}, apierrors.New(apierrors.Validation, "dataset not found")
		}
		return types.Dataset{}, apierrors.Wrap(apierrors.Transient, "get dataset", err)
	}
	if err := json.Unmarshal(cfgJSON, &d.Config); err != nil {
		return types.Dataset{}, apierrors.Wrap(apierrors.Inconsistency, "unmarshal dataset config", err)
	}
	return d, nil
}

// MarkDatasetDeleted sets the soft-delete marker, leaving the row in
// place until the Deleter's cascade removes every dependent chunk.
func (s *Store) MarkDatasetDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	const query = `UPDATE datasets SET deleted_at = $2 WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "mark dataset deleted", err)
	}
	return nil
}

// PurgeDataset removes the dataset row entirely, the final step of a
// delete cascade once every chunk is gone.
func (s *Store) PurgeDataset(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM datasets WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "purge dataset", err)
	}
	return nil
}

// BulkUpsertChunks inserts chunks in a single transaction, upserting
// by (dataset_id, tracking_id) when upsertByTrackingID is set so a
// caller can safely re-post the same batch.
func (s *Store) BulkUpsertChunks(ctx context.Context, chunks []types.Chunk, upsertByTrackingID bool) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "begin bulk upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	conflictClause := "ON CONFLICT (id) DO UPDATE SET"
	if upsertByTrackingID {
		conflictClause = "ON CONFLICT (dataset_id, tracking_id) DO UPDATE SET"
	}
	query := fmt.Sprintf(`
		INSERT INTO chunks (
			id, dataset_id, tracking_id, chunk_html, link, tag_set, metadata,
			content_group_id, weight, collision_of, num_value, time_stamp,
			location_lat, location_lon, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		%s
			chunk_html = EXCLUDED.chunk_html,
			link = EXCLUDED.link,
			tag_set = EXCLUDED.tag_set,
			metadata = EXCLUDED.metadata,
			content_group_id = EXCLUDED.content_group_id,
			weight = EXCLUDED.weight,
			collision_of = EXCLUDED.collision_of,
			num_value = EXCLUDED.num_value,
			time_stamp = EXCLUDED.time_stamp,
			location_lat = EXCLUDED.location_lat,
			location_lon = EXCLUDED.location_lon,
			updated_at = EXCLUDED.updated_at
	`, conflictClause)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "prepare bulk upsert", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return apierrors.Wrap(apierrors.Validation, "marshal chunk metadata", err)
		}
		var lat, lon *float64
		if c.Location != nil {
			lat, lon = &c.Location.Lat, &c.Location.Lon
		}
		_, err = stmt.ExecContext(ctx,
			c.ID, c.DatasetID, c.TrackingID, c.Content, c.Link, pq.Array(c.Tags), metaJSON,
			c.ContentGroupID, c.Weight, c.CollisionOf, c.NumValue, c.TimeStamp,
			lat, lon, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return apierrors.Wrap(apierrors.Transient, "exec bulk upsert row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierrors.Wrap(apierrors.Transient, "commit bulk upsert", err)
	}
	return nil
}

// GetChunksByID fetches a batch of chunks by ID, used by search to
// hydrate ranked hits after the vector store returns point IDs.
func (s *Store) GetChunksByID(ctx context.Context, datasetID uuid.UUID, ids []uuid.UUID) ([]types.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `
		SELECT id, dataset_id, tracking_id, chunk_html, link, tag_set, metadata,
			content_group_id, weight, collision_of, num_value, time_stamp,
			location_lat, location_lon, created_at, updated_at
		FROM chunks
		WHERE dataset_id = $1 AND id = ANY($2) AND collision_of IS NULL
	`
	rows, err := s.db.QueryContext(ctx, query, datasetID, pq.Array(ids))
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Transient, "get chunks by id", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetChunksByTrackingID looks up every chunk in dataset carrying the
// given caller-supplied tracking id (normally zero or one, but
// tracking ids are not unique unless the caller upserts by them).
func (s *Store) GetChunksByTrackingID(ctx context.Context, datasetID uuid.UUID, trackingID string) ([]types.Chunk, error) {
	const query = `
		SELECT id, dataset_id, tracking_id, chunk_html, link, tag_set, metadata,
			content_group_id, weight, collision_of, num_value, time_stamp,
			location_lat, location_lon, created_at, updated_at
		FROM chunks
		WHERE dataset_id = $1 AND tracking_id = $2 AND collision_of IS NULL
	`
	rows, err := s.db.QueryContext(ctx, query, datasetID, trackingID)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Transient, "get chunks by tracking id", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ScrollChunks returns up to limit chunks for dataset with id greater
// than after, ordered by id, for keyset pagination — used by the
// Reindexer and bulk exporters to walk an entire dataset without
// OFFSET-based drift.
func (s *Store) ScrollChunks(ctx context.Context, datasetID uuid.UUID, after uuid.UUID, limit int) ([]types.Chunk, error) {
	const query = `
		SELECT id, dataset_id, tracking_id, chunk_html, link, tag_set, metadata,
			content_group_id, weight, collision_of, num_value, time_stamp,
			location_lat, location_lon, created_at, updated_at
		FROM chunks
		WHERE dataset_id = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, datasetID, after, limit)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Transient, "scroll chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// RangeScanChunks returns chunks updated in [since, until), used by
// analytics backfills and incremental reindex passes that key off
// modification time rather than ID order.
func (s *Store) RangeScanChunks(ctx context.Context, datasetID uuid.UUID, since, until time.Time) ([]types.Chunk, error) {
	const query = `
		SELECT id, dataset_id, tracking_id, chunk_html, link, tag_set, metadata,
			content_group_id, weight, collision_of, num_value, time_stamp,
			location_lat, location_lon, created_at, updated_at
		FROM chunks
		WHERE dataset_id = $1 AND updated_at >= $2 AND updated_at < $3
		ORDER BY updated_at
	`
	rows, err := s.db.QueryContext(ctx, query, datasetID, since, until)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Transient, "range scan chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]types.Chunk, error) {
	var out []types.Chunk
	for rows.Next() {
		var c types.Chunk
		var tags pq.StringArray
		var metaJSON []byte
		var lat, lon *float64
		if err := rows.Scan(&c.ID, &c.DatasetID, &c.TrackingID, &c.Content, &c.Link, &tags, &metaJSON,
			&c.ContentGroupID, &c.Weight, &c.CollisionOf, &c.NumValue, &c.TimeStamp,
			&lat, &lon, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, apierrors.Wrap(apierrors.Inconsistency, "scan chunk row", err)
		}
		c.Tags = []string(tags)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
				return nil, apierrors.Wrap(apierrors.Inconsistency, "unmarshal chunk metadata", err)
			}
		}
		if lat != nil && lon != nil {
			c.Location = &types.GeoPoint{Lat: *lat, Lon: *lon}
		}
		if c.ContentGroupID != nil {
			c.GroupIDs = []uuid.UUID{*c.ContentGroupID}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChunksByIDs removes chunks transactionally in batches, used
// by the Deleter so a dataset-delete cascade never holds a single
// giant transaction open.
func (s *Store) DeleteChunksByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_group_bookmarks WHERE chunk_id = ANY($1)`, pq.Array(ids)); err != nil {
		return apierrors.Wrap(apierrors.Transient, "delete bookmarks", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM boosts WHERE chunk_id = ANY($1)`, pq.Array(ids)); err != nil {
		return apierrors.Wrap(apierrors.Transient, "delete boosts", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return apierrors.Wrap(apierrors.Transient, "delete chunks", err)
	}
	if err := tx.Commit(); err != nil {
		return apierrors.Wrap(apierrors.Transient, "commit delete", err)
	}
	return nil
}

// FindChunkIDsByDataset returns every chunk ID in dataset, used to
// page through a dataset-wide delete in bounded batches.
func (s *Store) FindChunkIDsByDataset(ctx context.Context, datasetID uuid.UUID, limit int) ([]uuid.UUID, error) {
	const query = `SELECT id FROM chunks WHERE dataset_id = $1 LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, datasetID, limit)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Transient, "find chunk ids", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apierrors.Wrap(apierrors.Inconsistency, "scan chunk id", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// BookmarkChunk adds a chunk to a group, ignoring the call if the
// bookmark already exists.
func (s *Store) BookmarkChunk(ctx context.Context, chunkID, groupID uuid.UUID) error {
	const query = `
		INSERT INTO chunk_group_bookmarks (chunk_id, group_id) VALUES ($1, $2)
		ON CONFLICT (chunk_id, group_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, chunkID, groupID)
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "bookmark chunk", err)
	}
	return nil
}

// UpsertBoost inserts or replaces the ranking boost for a chunk.
func (s *Store) UpsertBoost(ctx context.Context, b types.Boost) error {
	const query = `
		INSERT INTO boosts (chunk_id, phrase, fulltext_boost, semantic_boost, distance_boost)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chunk_id) DO UPDATE SET
			phrase = EXCLUDED.phrase,
			fulltext_boost = EXCLUDED.fulltext_boost,
			semantic_boost = EXCLUDED.semantic_boost,
			distance_boost = EXCLUDED.distance_boost
	`
	_, err := s.db.ExecContext(ctx, query, b.ChunkID, b.Phrase, b.FullTextBoost, b.SemanticBoost, b.Distance)
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "upsert boost", err)
	}
	return nil
}
