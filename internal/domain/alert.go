package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AlertStatus is the operator-assigned disposition of a chain-break alert.
type AlertStatus string

const (
	AlertStatusAcknowledged  AlertStatus = "acknowledged"
	AlertStatusInvestigating AlertStatus = "investigating"
	AlertStatusResolved      AlertStatus = "resolved"
	AlertStatusFalsePositive AlertStatus = "false_positive"
)

// Terminal reports whether the status closes the investigation.
func (s AlertStatus) Terminal() bool {
	return s == AlertStatusResolved || s == AlertStatusFalsePositive
}

// AlertAcknowledgment tracks the human disposition of one broken
// verification run. At most one row exists per run: the first
// acknowledgment creates it, later submissions update status, notes and
// resolution time in place. Rows are never deleted.
type AlertAcknowledgment struct {
	AlertID         uuid.UUID   `json:"alert_id"` // the broken VerificationRun's id
	AcknowledgedBy  string      `json:"acknowledged_by"`
	AcknowledgedAt  time.Time   `json:"acknowledged_at"`
	Status          AlertStatus `json:"status"`
	ResolutionNotes string      `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`
}

// Alert pairs a broken verification run with its acknowledgment, if an
// operator has acted on it yet. A nil Acknowledgment means the alert is
// still unacknowledged.
type Alert struct {
	Run            *VerificationRun     `json:"run"`
	Acknowledgment *AlertAcknowledgment `json:"acknowledgment,omitempty"`
}

// AcknowledgmentRepository persists alert dispositions keyed by run id.
type AcknowledgmentRepository interface {
	// Upsert creates the acknowledgment on first submission and updates
	// status/notes/resolved_at on re-submission, preserving the original
	// acknowledged_by and acknowledged_at.
	Upsert(ctx context.Context, ack *AlertAcknowledgment) (*AlertAcknowledgment, error)
	GetAcknowledgment(ctx context.Context, alertID uuid.UUID) (*AlertAcknowledgment, error)
	// ListAlerts returns broken runs joined with their acknowledgments,
	// newest first. statusFilter narrows to a disposition; the special
	// value "unacknowledged" selects broken runs with no row yet, and an
	// empty filter returns everything.
	ListAlerts(ctx context.Context, statusFilter string, limit int) ([]*Alert, error)
}
