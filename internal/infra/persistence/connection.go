// Package persistence implements the audit repositories over PostgreSQL.
// The entry table is append-only; the single correctness-critical write
// path (tail read + append) is serialized with an advisory lock and backed
// by a UNIQUE constraint on prev_hash.
package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clarimed/auditchain/internal/infra/config"
)

// NewConnectionPool creates a pgx pool from the database configuration and
// verifies connectivity before returning it.
func NewConnectionPool(ctx context.Context, dbConfig config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbConfig.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	if dbConfig.MaxConns > 0 {
		poolConfig.MaxConns = dbConfig.MaxConns
	}
	if dbConfig.MinConns > 0 {
		poolConfig.MinConns = dbConfig.MinConns
	}
	if dbConfig.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = dbConfig.MaxConnLifetime
	}
	if dbConfig.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = dbConfig.MaxConnIdleTime
	}
	if dbConfig.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = dbConfig.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
