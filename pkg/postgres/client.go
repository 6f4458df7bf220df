package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChainTailLockID is the advisory lock key serializing tail reads and
// appends on the audit chain. A single logical tail exists, so a single
// constant key suffices.
const ChainTailLockID int64 = 0x61756469 // "audi"

// Client is a PostgreSQL client with connection pooling and prepared statements.
type Client struct {
	DB *pgxpool.Pool
}

// NewClient creates a new PostgreSQL client.
func NewClient(db *pgxpool.Pool) *Client {
	return &Client{DB: db}
}

// PrepareStatements prepares commonly used SQL statements for better performance.
func (c *Client) PrepareStatements(ctx context.Context, statements map[string]string) error {
	conn, err := c.DB.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for statement preparation: %w", err)
	}
	defer conn.Release()

	for name, sql := range statements {
		_, err := conn.Conn().Prepare(ctx, name, sql)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
	}

	return nil
}

// AcquireLock takes a transaction-scoped advisory lock, blocking until it
// is granted. The lock releases automatically on commit or rollback.
func (c *Client) AcquireLock(ctx context.Context, tx pgx.Tx, lockID int64) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}
