package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open connects to the database named by dsn and prepares its schema.
// "sqlite:<path>" selects the embedded SQLite store, anything else is
// treated as a PostgreSQL connection string.
func Open(ctx context.Context, dsn string) (Store, error) {
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		return OpenSQLite(ctx, strings.TrimPrefix(path, "//"))
	}

	pool, err := Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewPostgresStore(pool), nil
}

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error parsing db config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging db: %w", err)
	}

	return pool, nil
}
