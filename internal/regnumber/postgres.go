package regnumber

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGenerator keeps counters in the regnumber_counters table.
type PostgresGenerator struct {
	pool *pgxpool.Pool
	now  clock
}

// NewPostgresGenerator creates a generator backed by pool.
func NewPostgresGenerator(pool *pgxpool.Pool) *PostgresGenerator {
	return &PostgresGenerator{pool: pool, now: time.Now}
}

// Next atomically bumps the counter for kind in the current year.
func (g *PostgresGenerator) Next(ctx context.Context, kind Kind) (string, error) {
	year := g.now().Year()
	var next int
	query := `
		INSERT INTO regnumber_counters (kind, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (kind, year) DO UPDATE SET last_number = regnumber_counters.last_number + 1
		RETURNING last_number`

	if err := g.pool.QueryRow(ctx, query, string(kind), year).Scan(&next); err != nil {
		return "", fmt.Errorf("failed to generate %s number: %w", kind, err)
	}
	return Format(kind, year, next), nil
}

var _ Generator = (*PostgresGenerator)(nil)
