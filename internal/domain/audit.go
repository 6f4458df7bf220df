package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action tags the kind of security-relevant event an audit entry records.
type Action string

const (
	ActionLogin         Action = "login"
	ActionLoginFailed   Action = "login.failed"
	ActionLogout        Action = "logout"
	ActionClientView    Action = "client.view"
	ActionClientCreate  Action = "client.create"
	ActionClientUpdate  Action = "client.update"
	ActionNoteCreate    Action = "note.create"
	ActionNoteView      Action = "note.view"
	ActionConsentGrant  Action = "consent.grant"
	ActionConsentRevoke Action = "consent.revoke"
	ActionExportPDF     Action = "export.pdf"
	ActionExportFHIR    Action = "export.fhir"
)

// AuditEntry is one immutable, hash-linked record of a security-relevant
// action. Entries form a chain: PrevHash references the EntryHash of the
// entry immediately preceding it in creation order, so rewriting any row
// invalidates every row after it.
type AuditEntry struct {
	ID           uuid.UUID      `json:"id"`
	Seq          int64          `json:"seq"`
	OccurredAt   time.Time      `json:"occurred_at"`
	ActorID      string         `json:"actor_id,omitempty"` // empty for system actions
	Action       Action         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Payload      map[string]any `json:"payload"`
	PrevHash     string         `json:"prev_hash"`
	EntryHash    string         `json:"entry_hash"`
}

// EntryAggregates holds grouped counts over a window of audit entries,
// consumed by the compliance report generator.
type EntryAggregates struct {
	Total          int64            `json:"total"`
	ByAction       map[string]int64 `json:"by_action"`
	ByActor        map[string]int64 `json:"by_actor"`
	ByResourceType map[string]int64 `json:"by_resource_type"`
}

// EntryRepository persists the append-only audit chain.
//
// Append assigns the entry's Seq and fails with errors.ErrTailConflict when
// another writer already linked an entry to the same predecessor. Rows are
// never updated or deleted.
type EntryRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Latest(ctx context.Context) (*AuditEntry, error)
	ListAfter(ctx context.Context, afterSeq int64, limit int) ([]*AuditEntry, error)
	AggregateRange(ctx context.Context, from, to time.Time) (*EntryAggregates, error)
}
