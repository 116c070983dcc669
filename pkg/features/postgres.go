// pkg/features/postgres.go
package features

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgFlags struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a flag store over the instance_features table, which
// is provisioned with the auth schema and cascades on record deletion.
func NewPostgres(pool *pgxpool.Pool) FlagStore {
	return &pgFlags{pool: pool}
}

func (s *pgFlags) Get(ctx context.Context, instanceURL string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT feature, enabled FROM instance_features WHERE instance_url=$1`, instanceURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var feature string
		var enabled bool
		if err := rows.Scan(&feature, &enabled); err != nil {
			return nil, err
		}
		out[feature] = enabled
	}
	return out, rows.Err()
}

func (s *pgFlags) Set(ctx context.Context, instanceURL string, flags map[string]bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM instance_features WHERE instance_url=$1`, instanceURL); err != nil {
		return err
	}
	for feature, enabled := range flags {
		_, err := tx.Exec(ctx, `
INSERT INTO instance_features (instance_url, feature, enabled, updated_at)
VALUES ($1, $2, $3, NOW())`, instanceURL, feature, enabled)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *pgFlags) Delete(ctx context.Context, instanceURL string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM instance_features WHERE instance_url=$1`, instanceURL)
	return err
}
