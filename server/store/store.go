// Package store is the pgx/pgxpool persistence layer backing the arena:
// generators, levels, ratings, pair stats, battles, votes, and the
// rating-event audit log.
package store

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema embed.FS

// DB wraps a pgxpool.Pool with the arena's query surface.
type DB struct{ *pgxpool.Pool }

// Open establishes the connection pool. dsn is a standard Postgres
// connection string.
func Open(ctx context.Context, dsn string) (*DB, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close() { db.Pool.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

// Migrate applies the embedded schema. Idempotent: every statement is
// CREATE TABLE/INDEX IF NOT EXISTS.
func (db *DB) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}
