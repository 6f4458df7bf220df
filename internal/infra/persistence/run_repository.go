package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clarimed/auditchain/internal/constants"
	"github.com/clarimed/auditchain/internal/domain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
	"github.com/clarimed/auditchain/pkg/postgres"
)

// RunRepository stores verification run history. Runs live in their own
// table, outside the chain they verify.
type RunRepository struct {
	client *postgres.Client
}

func NewRunRepository(db *pgxpool.Pool) *RunRepository {
	return &RunRepository{client: postgres.NewClient(db)}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.VerificationRun) error {
	var details []byte
	if run.Details != nil {
		var err error
		details, err = json.Marshal(run.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal run details: %w", err)
		}
	}

	_, err := r.client.DB.Exec(ctx, constants.Queries[constants.StmtInsertRun],
		run.ID, run.RunAt, run.Intact, run.TotalEntries, run.VerifiedEntries,
		run.BrokenAtID, details, run.LastVerifiedSeq, run.LastVerifiedHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert verification run: %w", err)
	}
	return nil
}

func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*domain.VerificationRun, error) {
	run, err := scanRun(r.client.DB.QueryRow(ctx, constants.Queries[constants.StmtGetRun], id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]*domain.VerificationRun, error) {
	return r.queryRuns(ctx, constants.Queries[constants.StmtListRuns], limit)
}

func (r *RunRepository) ListRange(ctx context.Context, from, to time.Time) ([]*domain.VerificationRun, error) {
	return r.queryRuns(ctx, constants.Queries[constants.StmtListRunsRange], from, to)
}

func (r *RunRepository) LatestIntact(ctx context.Context) (*domain.VerificationRun, error) {
	run, err := scanRun(r.client.DB.QueryRow(ctx, constants.Queries[constants.StmtLatestIntactRun]))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

func (r *RunRepository) queryRuns(ctx context.Context, query string, args ...any) ([]*domain.VerificationRun, error) {
	rows, err := r.client.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verification runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.VerificationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
