package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
)

const defaultPostgresDSN = "postgres://localhost/guardia?sslmode=disable"

// PostgresBackend stores the collection blob in a Postgres state table,
// for installations that keep records on a shared server.
type PostgresBackend struct {
	db  *sql.DB
	key string
}

// NewPostgresBackend connects to Postgres and ensures the state table exists.
// An empty dsn falls back to a local default.
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket     TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	return &PostgresBackend{db: db, key: BlobKey}, nil
}

func (b *PostgresBackend) Read(ctx context.Context) ([]byte, error) {
	var payload string
	err := b.db.QueryRowContext(ctx, `SELECT payload::text FROM state WHERE bucket = $1`, b.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	return []byte(payload), nil
}

func (b *PostgresBackend) Write(ctx context.Context, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO state (bucket, payload, updated_at) VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (bucket) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		b.key, string(data))
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Name() string { return "postgres" }

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}
