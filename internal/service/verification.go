package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clarimed/auditchain/internal/chain"
	"github.com/clarimed/auditchain/internal/domain"
)

// BreakNotifier is the outbound notification interface for newly detected
// chain breaks (dashboard banner, pager, etc. — outside this core).
type BreakNotifier interface {
	NotifyChainBreak(ctx context.Context, run *domain.VerificationRun)
}

// LogNotifier is the default BreakNotifier: it surfaces breaks on the
// structured log only.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyChainBreak(ctx context.Context, run *domain.VerificationRun) {
	n.logger.ErrorContext(ctx, "audit chain break detected",
		"run_id", run.ID.String(),
		"broken_at_id", run.BrokenAtID.String(),
		"broken_seq", run.Details.BrokenSeq,
		"reason", run.Details.Reason,
		"verified_entries", run.VerifiedEntries,
		"total_entries", run.TotalEntries,
	)
}

// VerificationOptions controls one verification pass.
type VerificationOptions struct {
	// Incremental resumes from the cursor of the most recent intact run
	// instead of walking the whole chain from genesis. Falls back to a
	// full walk when no intact run exists yet.
	Incremental bool
}

// VerificationService runs the chain verifier, records each execution as a
// VerificationRun, and routes broken outcomes to the notifier. Runs are
// independent and idempotent in their reads, so scheduled and manual
// triggers may overlap freely.
type VerificationService struct {
	verifier *chain.Verifier
	runs     domain.RunRepository
	notifier BreakNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewVerificationService(verifier *chain.Verifier, runs domain.RunRepository, notifier BreakNotifier, logger *slog.Logger) *VerificationService {
	return &VerificationService{
		verifier: verifier,
		runs:     runs,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one verification pass and persists its outcome. The run
// record is created even when the chain is broken; failing to persist the
// record is the only error path.
func (s *VerificationService) Run(ctx context.Context, opts VerificationOptions) (*domain.VerificationRun, error) {
	cursor, err := s.resolveCursor(ctx, opts)
	if err != nil {
		return nil, err
	}

	result, err := s.verifier.Verify(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("chain verification failed to execute: %w", err)
	}

	run := &domain.VerificationRun{
		ID:               uuid.New(),
		RunAt:            s.now().UTC(),
		Intact:           result.Intact,
		TotalEntries:     result.TotalEntries,
		VerifiedEntries:  result.VerifiedEntries,
		BrokenAtID:       result.BrokenAtID,
		Details:          result.Details,
		LastVerifiedSeq:  result.LastVerifiedSeq,
		LastVerifiedHash: result.LastVerifiedHash,
	}

	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record verification run: %w", err)
	}

	if run.Intact {
		s.logger.InfoContext(ctx, "audit chain verified intact",
			"run_id", run.ID.String(),
			"total_entries", run.TotalEntries,
			"incremental", opts.Incremental,
		)
	} else {
		s.notifier.NotifyChainBreak(ctx, run)
	}

	return run, nil
}

// List returns verification run history, newest first.
func (s *VerificationService) List(ctx context.Context, limit int) ([]*domain.VerificationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.runs.List(ctx, limit)
}

func (s *VerificationService) resolveCursor(ctx context.Context, opts VerificationOptions) (*chain.Cursor, error) {
	if !opts.Incremental {
		return nil, nil
	}

	last, err := s.runs.LatestIntact(ctx)
	switch {
	case err == nil:
		return &chain.Cursor{Seq: last.LastVerifiedSeq, EntryHash: last.LastVerifiedHash}, nil
	case isRunNotFound(err):
		return nil, nil
	default:
		return nil, fmt.Errorf("failed to resolve verification cursor: %w", err)
	}
}
