package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/marketgate/internal/cache"
	"github.com/wonny/marketgate/pkg/database"
)

// Schema creates the snapshot table
var Schema = []string{
	`CREATE SCHEMA IF NOT EXISTS cache`,
	`CREATE TABLE IF NOT EXISTS cache.result_entries (
		scope       TEXT        NOT NULL,
		period      TEXT        NOT NULL,
		cache_date  TIMESTAMPTZ NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL,
		records     JSONB       NOT NULL,
		PRIMARY KEY (scope, period)
	)`,
}

// PostgresStore keeps one row per cache entry
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates the table when missing
func NewPostgresStore(ctx context.Context, db *database.DB) (*PostgresStore, error) {
	if err := db.EnsureSchema(ctx, Schema...); err != nil {
		return nil, fmt.Errorf("snapshot schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Name identifies the backend in status output
func (s *PostgresStore) Name() string { return "postgres:cache.result_entries" }

// Load reads every stored entry
func (s *PostgresStore) Load(ctx context.Context) ([]cache.CacheEntry, error) {
	query := `
		SELECT scope, period, cache_date, computed_at, records
		FROM cache.result_entries
		ORDER BY scope, period
	`

	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var entries []cache.CacheEntry
	for rows.Next() {
		var (
			e       cache.CacheEntry
			period  string
			records []byte
		)
		if err := rows.Scan(&e.Scope, &period, &e.CacheDate, &e.ComputedAt, &records); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		e.Period = cache.Period(period)
		if err := json.Unmarshal(records, &e.Records); err != nil {
			return nil, fmt.Errorf("decode records of %s: %w", e.Scope, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}

	return entries, nil
}

// Save replaces the table contents in one transaction
func (s *PostgresStore) Save(ctx context.Context, entries []cache.CacheEntry) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM cache.result_entries`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	query := `
		INSERT INTO cache.result_entries (scope, period, cache_date, computed_at, records)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope, period) DO UPDATE SET
			cache_date = EXCLUDED.cache_date,
			computed_at = EXCLUDED.computed_at,
			records = EXCLUDED.records
	`

	batch := &pgx.Batch{}
	for _, e := range entries {
		records, err := json.Marshal(e.Records)
		if err != nil {
			return fmt.Errorf("encode records of %s: %w", e.Scope, err)
		}
		batch.Queue(query, e.Scope, string(e.Period), e.CacheDate, e.ComputedAt, records)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}

	return tx.Commit(ctx)
}
