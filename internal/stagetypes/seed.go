package stagetypes

import (
	"context"
	"fmt"

	"backoffice_backend/platform/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Seeder upserts catalog entries into stage_types.
type Seeder struct {
	pool *pgxpool.Pool
}

func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{pool: pool}
}

// Seed writes entries in one transaction. Existing (model, value) rows keep
// their id and take the catalog order. Returns the number of rows written.
func (s *Seeder) Seed(ctx context.Context, entries []Entry) (int, error) {
	written := 0
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`
				INSERT INTO stage_types (model, value, sort_order)
				VALUES ($1, $2, $3)
				ON CONFLICT (model, value) DO UPDATE SET sort_order = EXCLUDED.sort_order
			`, e.Model, e.Value, e.Order)
		}

		results := tx.SendBatch(ctx, batch)
		for _, e := range entries {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return fmt.Errorf("seed stage type %s/%s: %w", e.Model, e.Value, err)
			}
			written += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
