package earnings

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/marketgate/internal/contracts"
	"github.com/wonny/marketgate/pkg/database"
)

// UniverseSchema creates the stock table
var UniverseSchema = []string{
	`CREATE SCHEMA IF NOT EXISTS data`,
	`CREATE TABLE IF NOT EXISTS data.stocks (
		ticker  TEXT PRIMARY KEY,
		company TEXT NOT NULL DEFAULT '',
		sector  TEXT NOT NULL DEFAULT ''
	)`,
}

// PostgresUniverse reads the stock list from data.stocks
type PostgresUniverse struct {
	db *database.DB
}

// NewPostgresUniverse creates the table when missing
func NewPostgresUniverse(ctx context.Context, db *database.DB) (*PostgresUniverse, error) {
	if err := db.EnsureSchema(ctx, UniverseSchema...); err != nil {
		return nil, fmt.Errorf("universe schema: %w", err)
	}
	return &PostgresUniverse{db: db}, nil
}

// ListStocks implements contracts.UniverseSource
func (u *PostgresUniverse) ListStocks(ctx context.Context, sectors []string) ([]contracts.Stock, error) {
	query := `SELECT ticker, company, sector FROM data.stocks ORDER BY ticker`
	args := []any{}

	if len(sectors) > 0 {
		lowered := make([]string, len(sectors))
		for i, s := range sectors {
			lowered[i] = strings.ToLower(strings.TrimSpace(s))
		}
		query = `SELECT ticker, company, sector FROM data.stocks WHERE lower(sector) = ANY($1) ORDER BY ticker`
		args = append(args, lowered)
	}

	rows, err := u.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}

	stocks, err := pgx.CollectRows(rows, pgx.RowToStructByPos[contracts.Stock])
	if err != nil {
		return nil, fmt.Errorf("scan stocks: %w", err)
	}
	return stocks, nil
}

// Upsert inserts or updates stocks in one batch
func (u *PostgresUniverse) Upsert(ctx context.Context, stocks []contracts.Stock) error {
	query := `
		INSERT INTO data.stocks (ticker, company, sector)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker) DO UPDATE SET
			company = EXCLUDED.company,
			sector = EXCLUDED.sector
	`

	batch := &pgx.Batch{}
	for _, st := range stocks {
		batch.Queue(query, strings.ToUpper(st.Ticker), st.Company, st.Sector)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := u.db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert stocks: %w", err)
	}
	return nil
}
