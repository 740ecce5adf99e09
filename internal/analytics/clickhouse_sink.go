package analytics

import (
	"context"
	"database/sql"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseSink writes event batches to a ClickHouse events table.
// It is the production Sink; tests use an in-memory Sink instead.
type ClickHouseSink struct {
	db *sql.DB
}

// ClickHouseConfig holds the connection settings read from
// CLICKHOUSE_URL/USER/PASSWORD/DATABASE.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// NewClickHouseSink opens a connection pool against ClickHouse using
// its native database/sql driver.
func NewClickHouseSink(cfg ClickHouseConfig) *ClickHouseSink {
	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	return &ClickHouseSink{db: db}
}

// WriteBatch inserts every event in one batched statement.
func (s *ClickHouseSink) WriteBatch(ctx context.Context, events []Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dataset_events (kind, dataset_id, count, extra_ms, query, top_score, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.Kind, e.DatasetID.String(), e.Count, e.ExtraMs, e.Query, e.TopScore, e.At); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close releases the underlying connection pool.
func (s *ClickHouseSink) Close() error { return s.db.Close() }
