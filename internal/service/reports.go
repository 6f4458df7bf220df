package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clarimed/auditchain/internal/domain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
)

// RunSummary aggregates verification outcomes over a report window.
type RunSummary struct {
	Total       int64      `json:"total"`
	Intact      int64      `json:"intact"`
	Broken      int64      `json:"broken"`
	LatestBreak *uuid.UUID `json:"latest_break_run_id,omitempty"`
}

// ComplianceReport is the read-only summary document for a date range:
// audit activity grouped by actor/action/resource plus verification
// history.
type ComplianceReport struct {
	From        time.Time               `json:"from"`
	To          time.Time               `json:"to"`
	GeneratedAt time.Time               `json:"generated_at"`
	Entries     *domain.EntryAggregates `json:"entries"`
	Runs        RunSummary              `json:"verification_runs"`
}

// ReportsService is a read-only consumer of the entry and run tables. No
// invariants of its own.
type ReportsService struct {
	entries domain.EntryRepository
	runs    domain.RunRepository
	now     func() time.Time
}

func NewReportsService(entries domain.EntryRepository, runs domain.RunRepository) *ReportsService {
	return &ReportsService{entries: entries, runs: runs, now: time.Now}
}

// Generate builds the compliance summary for [from, to).
func (s *ReportsService) Generate(ctx context.Context, from, to time.Time) (*ComplianceReport, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: report range start must precede end", apperrors.ErrInvalidInput)
	}

	aggregates, err := s.entries.AggregateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit entries: %w", err)
	}

	runs, err := s.runs.ListRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list verification runs: %w", err)
	}

	summary := RunSummary{}
	for _, run := range runs {
		summary.Total++
		if run.Intact {
			summary.Intact++
			continue
		}
		summary.Broken++
		if summary.LatestBreak == nil {
			id := run.ID
			summary.LatestBreak = &id
		}
	}

	return &ComplianceReport{
		From:        from,
		To:          to,
		GeneratedAt: s.now().UTC(),
		Entries:     aggregates,
		Runs:        summary,
	}, nil
}
