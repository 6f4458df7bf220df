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

// AckRepository stores alert dispositions. The table's primary key is the
// run id, so one disposition row exists per broken run; re-submission
// updates status, notes and resolution time while keeping the original
// acknowledged_by/acknowledged_at.
type AckRepository struct {
	client *postgres.Client
}

func NewAckRepository(db *pgxpool.Pool) *AckRepository {
	return &AckRepository{client: postgres.NewClient(db)}
}

func (r *AckRepository) Upsert(ctx context.Context, ack *domain.AlertAcknowledgment) (*domain.AlertAcknowledgment, error) {
	stored, err := scanAck(r.client.DB.QueryRow(ctx, constants.Queries[constants.StmtUpsertAck],
		ack.AlertID, ack.AcknowledgedBy, ack.AcknowledgedAt,
		ack.Status, ack.ResolutionNotes, ack.ResolvedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert acknowledgment: %w", err)
	}
	return stored, nil
}

func (r *AckRepository) GetAcknowledgment(ctx context.Context, alertID uuid.UUID) (*domain.AlertAcknowledgment, error) {
	ack, err := scanAck(r.client.DB.QueryRow(ctx, constants.Queries[constants.StmtGetAck], alertID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAckNotFound
		}
		return nil, err
	}
	return ack, nil
}

func (r *AckRepository) ListAlerts(ctx context.Context, statusFilter string, limit int) ([]*domain.Alert, error) {
	rows, err := r.client.DB.Query(ctx, constants.ListAlertsQuery, statusFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// scanAlert scans one row of the broken-runs/acknowledgments join. The
// acknowledgment columns are NULL when no operator has acted yet.
func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var run domain.VerificationRun
	var detailsRaw []byte
	var ackBy *string
	var ackAt *time.Time
	var ackStatus, ackNotes *string
	var resolvedAt *time.Time

	err := row.Scan(
		&run.ID, &run.RunAt, &run.Intact, &run.TotalEntries, &run.VerifiedEntries,
		&run.BrokenAtID, &detailsRaw, &run.LastVerifiedSeq, &run.LastVerifiedHash,
		&ackBy, &ackAt, &ackStatus, &ackNotes, &resolvedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert row: %w", err)
	}

	if len(detailsRaw) > 0 {
		run.Details = &domain.BreakDetail{}
		if err := json.Unmarshal(detailsRaw, run.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run details: %w", err)
		}
	}

	alert := &domain.Alert{Run: &run}
	if ackBy != nil && ackStatus != nil && ackAt != nil {
		alert.Acknowledgment = &domain.AlertAcknowledgment{
			AlertID:        run.ID,
			AcknowledgedBy: *ackBy,
			AcknowledgedAt: *ackAt,
			Status:         domain.AlertStatus(*ackStatus),
		}
		if ackNotes != nil {
			alert.Acknowledgment.ResolutionNotes = *ackNotes
		}
		alert.Acknowledgment.ResolvedAt = resolvedAt
	}
	return alert, nil
}
