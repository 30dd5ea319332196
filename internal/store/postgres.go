package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a small pool; the document model needs very little
// concurrency headroom.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Postgres keeps each document as one row in a key/jsonb table. Still a
// single slot per key: writes are whole-document upserts, never row-level
// patches of individual records.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(ctx context.Context, db *pgxpool.Pool) (*Postgres, error) {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv_documents (
			key        text PRIMARY KEY,
			doc        jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Read(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := p.DB.QueryRow(ctx, `SELECT doc FROM kv_documents WHERE key=$1`, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *Postgres) Write(ctx context.Context, key string, doc []byte) error {
	_, err := p.DB.Exec(ctx, `
		INSERT INTO kv_documents(key, doc, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		key, doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}
