package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clarimed/auditchain/internal/domain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
)

// AcknowledgeRequest is an operator's disposition of a chain-break alert.
type AcknowledgeRequest struct {
	AlertID    uuid.UUID `validate:"required"`
	Status     string    `validate:"required,oneof=acknowledged investigating resolved false_positive"`
	Notes      string    `validate:"max=4000"`
	OperatorID string    `validate:"required"`
}

// AlertsService turns broken verification runs into tracked, resolvable
// alerts. Dispositions are keyed by run id: the first acknowledgment of a
// run creates the row, later ones update it, so duplicate broken runs on
// the same break never produce duplicate disposition rows.
type AlertsService struct {
	runs     domain.RunRepository
	acks     domain.AcknowledgmentRepository
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewAlertsService(runs domain.RunRepository, acks domain.AcknowledgmentRepository, logger *slog.Logger) *AlertsService {
	return &AlertsService{
		runs:     runs,
		acks:     acks,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// Acknowledge records or updates the disposition of a broken run. Terminal
// statuses (resolved, false_positive) set resolved_at; moving back to a
// non-terminal status clears it.
func (s *AlertsService) Acknowledge(ctx context.Context, req AcknowledgeRequest) (*domain.AlertAcknowledgment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}

	run, err := s.runs.Get(ctx, req.AlertID)
	if err != nil {
		if isRunNotFound(err) {
			return nil, fmt.Errorf("%w: alert %s", apperrors.ErrRunNotFound, req.AlertID)
		}
		return nil, fmt.Errorf("failed to load verification run %s: %w", req.AlertID, err)
	}
	if run.Intact {
		return nil, fmt.Errorf("%w: run %s", apperrors.ErrAlertNotBroken, req.AlertID)
	}

	status := domain.AlertStatus(req.Status)
	ack := &domain.AlertAcknowledgment{
		AlertID:         req.AlertID,
		AcknowledgedBy:  req.OperatorID,
		AcknowledgedAt:  s.now().UTC(),
		Status:          status,
		ResolutionNotes: req.Notes,
	}
	if status.Terminal() {
		resolvedAt := s.now().UTC()
		ack.ResolvedAt = &resolvedAt
	}

	stored, err := s.acks.Upsert(ctx, ack)
	if err != nil {
		return nil, fmt.Errorf("failed to store alert acknowledgment: %w", err)
	}

	s.logger.InfoContext(ctx, "alert disposition recorded",
		"alert_id", req.AlertID.String(),
		"status", req.Status,
		"operator_id", req.OperatorID,
	)
	return stored, nil
}

// ListAlerts returns broken runs with their dispositions, newest first,
// optionally narrowed by status ("unacknowledged" selects runs no operator
// has acted on yet).
func (s *AlertsService) ListAlerts(ctx context.Context, statusFilter string, limit int) ([]*domain.Alert, error) {
	switch statusFilter {
	case "", "unacknowledged",
		string(domain.AlertStatusAcknowledged),
		string(domain.AlertStatusInvestigating),
		string(domain.AlertStatusResolved),
		string(domain.AlertStatusFalsePositive):
	default:
		return nil, fmt.Errorf("%w: unknown status filter %q", apperrors.ErrInvalidInput, statusFilter)
	}

	if limit <= 0 {
		limit = 50
	}
	return s.acks.ListAlerts(ctx, statusFilter, limit)
}
