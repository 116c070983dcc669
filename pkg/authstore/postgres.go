// pkg/authstore/postgres.go
package authstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	cipher *Cipher
	log    *zap.SugaredLogger
}

// NewPostgres constructs a PostgreSQL-backed store. cipher may be nil.
func NewPostgres(dbPool *pgxpool.Pool, cipher *Cipher, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, cipher: cipher, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS auth_records (
  instance_url text PRIMARY KEY,
  app_id text NOT NULL,
  token text,
  token_encrypted bytea,
  dashboard_url text NOT NULL DEFAULT '',
  jwks_url text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS instance_features (
  instance_url text REFERENCES auth_records(instance_url) ON DELETE CASCADE,
  feature text,
  enabled boolean NOT NULL DEFAULT false,
  updated_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (instance_url, feature)
);
-- Backfill / ensure columns exist (for upgrades)
ALTER TABLE auth_records ADD COLUMN IF NOT EXISTS token_encrypted bytea;
ALTER TABLE auth_records ADD COLUMN IF NOT EXISTS jwks_url text DEFAULT '';
CREATE UNIQUE INDEX IF NOT EXISTS auth_records_app_id_idx ON auth_records(app_id);
`)
	return err
}

// SeedFromEnv ingests initial auth records (AUTH_SEED_JSON, an array of
// records). Intended for dev and test databases.
func SeedFromEnv(ctx context.Context, store Store, jsonSeed string) error {
	if jsonSeed == "" {
		return nil
	}
	var entries []Record
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		if e.InstanceURL == "" {
			continue
		}
		if err := store.Set(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, appID string) (Record, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT instance_url,app_id,COALESCE(token,''),token_encrypted,COALESCE(dashboard_url,''),COALESCE(jwks_url,'') FROM auth_records WHERE app_id=$1`, appID)
	return s.scan(row)
}

func (s *pgStore) GetByURL(ctx context.Context, instanceURL string) (Record, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT instance_url,app_id,COALESCE(token,''),token_encrypted,COALESCE(dashboard_url,''),COALESCE(jwks_url,'') FROM auth_records WHERE instance_url=$1`, instanceURL)
	return s.scan(row)
}

func (s *pgStore) scan(row pgx.Row) (Record, error) {
	var rec Record
	var tokenEnc []byte
	if err := row.Scan(&rec.InstanceURL, &rec.AppID, &rec.Token, &tokenEnc, &rec.DashboardURL, &rec.JWKSURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if len(tokenEnc) > 0 && s.cipher != nil {
		plain, err := s.cipher.Open(tokenEnc)
		if err != nil {
			return Record{}, err
		}
		rec.Token = string(plain)
	}
	return rec, nil
}

func (s *pgStore) Set(ctx context.Context, rec Record) error {
	token := rec.Token
	var tokenEnc []byte
	if s.cipher != nil {
		enc, err := s.cipher.Seal([]byte(rec.Token))
		if err != nil {
			return err
		}
		tokenEnc = enc
		token = ""
	}
	_, err := s.dbPool.Exec(ctx, `INSERT INTO auth_records(instance_url,app_id,token,token_encrypted,dashboard_url,jwks_url)
	  VALUES ($1,$2,$3,$4,$5,$6)
	  ON CONFLICT (instance_url) DO UPDATE SET app_id=EXCLUDED.app_id,token=EXCLUDED.token,token_encrypted=EXCLUDED.token_encrypted,dashboard_url=EXCLUDED.dashboard_url,jwks_url=EXCLUDED.jwks_url,updated_at=NOW()`,
		rec.InstanceURL, rec.AppID, token, tokenEnc, rec.DashboardURL, rec.JWKSURL)
	return err
}

func (s *pgStore) Delete(ctx context.Context, instanceURL string) error {
	tag, err := s.dbPool.Exec(ctx, `DELETE FROM auth_records WHERE instance_url=$1`, instanceURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.dbPool.Query(ctx, `SELECT instance_url,app_id,COALESCE(token,''),token_encrypted,COALESCE(dashboard_url,''),COALESCE(jwks_url,'') FROM auth_records ORDER BY instance_url`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *pgStore) Ready(ctx context.Context) error {
	return s.dbPool.Ping(ctx)
}
