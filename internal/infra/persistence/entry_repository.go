package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clarimed/auditchain/internal/constants"
	"github.com/clarimed/auditchain/internal/domain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
	"github.com/clarimed/auditchain/pkg/postgres"
)

const pgUniqueViolation = "23505"

// EntryRepository stores the append-only audit chain in PostgreSQL.
type EntryRepository struct {
	client    *postgres.Client
	txManager *TransactionManager[int64]
	logger    *slog.Logger
}

func NewEntryRepository(db *pgxpool.Pool, logger *slog.Logger) *EntryRepository {
	return &EntryRepository{
		client:    postgres.NewClient(db),
		txManager: NewTransactionManager[int64](logger),
		logger:    logger,
	}
}

// Append inserts the entry inside a serializable transaction holding the
// chain-tail advisory lock. The tail is re-read under the lock: if another
// writer got in first, the stored tail no longer matches entry.PrevHash
// and the append fails with ErrTailConflict so the caller can rebuild
// against the refreshed tail. The UNIQUE(prev_hash) constraint backstops
// the same guarantee at the schema level.
func (r *EntryRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	payload := []byte("{}")
	if entry.Payload != nil {
		var err error
		payload, err = json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal entry payload: %w", err)
		}
	}

	var actorID *string
	if entry.ActorID != "" {
		actorID = &entry.ActorID
	}

	seq, err := r.txManager.ExecuteInTransaction(ctx, r.client.DB, func(ctx context.Context, tx pgx.Tx) (int64, error) {
		if err := r.client.AcquireLock(ctx, tx, postgres.ChainTailLockID); err != nil {
			return 0, err
		}

		var tailHash string
		err := tx.QueryRow(ctx, `SELECT entry_hash FROM audit_entries ORDER BY seq DESC LIMIT 1`).Scan(&tailHash)
		switch {
		case err == nil:
			if tailHash != entry.PrevHash {
				return 0, apperrors.ErrTailConflict
			}
		case errors.Is(err, pgx.ErrNoRows):
			// First entry; the writer linked against the genesis constant.
		default:
			return 0, fmt.Errorf("failed to read chain tail: %w", err)
		}

		var seq int64
		err = tx.QueryRow(ctx, constants.Queries[constants.StmtInsertEntry],
			entry.ID, entry.OccurredAt, actorID, entry.Action,
			entry.ResourceType, entry.ResourceID, payload,
			entry.PrevHash, entry.EntryHash,
		).Scan(&seq)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return 0, apperrors.ErrTailConflict
			}
			return 0, fmt.Errorf("failed to insert audit entry: %w", err)
		}
		return seq, nil
	})
	if err != nil {
		return err
	}

	entry.Seq = seq
	return nil
}

func (r *EntryRepository) Latest(ctx context.Context) (*domain.AuditEntry, error) {
	entry, err := scanEntry(r.client.DB.QueryRow(ctx, constants.Queries[constants.StmtLatestEntry]))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEmptyChain
		}
		return nil, err
	}
	return entry, nil
}

func (r *EntryRepository) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]*domain.AuditEntry, error) {
	rows, err := r.client.DB.Query(ctx, constants.Queries[constants.StmtListAfter], afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *EntryRepository) AggregateRange(ctx context.Context, from, to time.Time) (*domain.EntryAggregates, error) {
	agg := &domain.EntryAggregates{
		ByAction:       make(map[string]int64),
		ByActor:        make(map[string]int64),
		ByResourceType: make(map[string]int64),
	}

	groups := []struct {
		query string
		into  map[string]int64
	}{
		{constants.AggregateByActionQuery, agg.ByAction},
		{constants.AggregateByActorQuery, agg.ByActor},
		{constants.AggregateByResourceQuery, agg.ByResourceType},
	}

	for _, g := range groups {
		if err := r.aggregate(ctx, g.query, from, to, g.into); err != nil {
			return nil, err
		}
	}
	for _, n := range agg.ByAction {
		agg.Total += n
	}
	return agg, nil
}

func (r *EntryRepository) aggregate(ctx context.Context, query string, from, to time.Time, into map[string]int64) error {
	rows, err := r.client.DB.Query(ctx, query, from, to)
	if err != nil {
		return fmt.Errorf("failed to aggregate audit entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}
