package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clarimed/auditchain/internal/domain"
)

// scanEntry scans one audit_entries row in statement column order.
func scanEntry(row pgx.Row) (*domain.AuditEntry, error) {
	var entry domain.AuditEntry
	var actorID *string
	var payloadRaw []byte

	err := row.Scan(
		&entry.Seq,
		&entry.ID,
		&entry.OccurredAt,
		&actorID,
		&entry.Action,
		&entry.ResourceType,
		&entry.ResourceID,
		&payloadRaw,
		&entry.PrevHash,
		&entry.EntryHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entry row: %w", err)
	}

	if actorID != nil {
		entry.ActorID = *actorID
	}
	if len(payloadRaw) > 0 {
		if err := json.Unmarshal(payloadRaw, &entry.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry payload: %w", err)
		}
	}

	return &entry, nil
}

// scanRun scans one verification_runs row in statement column order.
func scanRun(row pgx.Row) (*domain.VerificationRun, error) {
	var run domain.VerificationRun
	var detailsRaw []byte

	err := row.Scan(
		&run.ID,
		&run.RunAt,
		&run.Intact,
		&run.TotalEntries,
		&run.VerifiedEntries,
		&run.BrokenAtID,
		&detailsRaw,
		&run.LastVerifiedSeq,
		&run.LastVerifiedHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan verification run row: %w", err)
	}

	if len(detailsRaw) > 0 {
		run.Details = &domain.BreakDetail{}
		if err := json.Unmarshal(detailsRaw, run.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run details: %w", err)
		}
	}

	return &run, nil
}

// scanAck scans one security_alert_acknowledgments row.
func scanAck(row pgx.Row) (*domain.AlertAcknowledgment, error) {
	var ack domain.AlertAcknowledgment
	err := row.Scan(
		&ack.AlertID,
		&ack.AcknowledgedBy,
		&ack.AcknowledgedAt,
		&ack.Status,
		&ack.ResolutionNotes,
		&ack.ResolvedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan acknowledgment row: %w", err)
	}
	return &ack, nil
}
