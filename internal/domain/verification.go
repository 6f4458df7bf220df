package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Break reasons recorded in a verification run's diagnostic detail.
const (
	BreakReasonHashMismatch = "hash_mismatch" // stored entry_hash != recomputed hash
	BreakReasonLinkMismatch = "link_mismatch" // stored prev_hash != predecessor's entry_hash
)

// BreakDetail diagnoses the first point of divergence found by a
// verification pass: the expected value, what was actually stored, and
// which check failed.
type BreakDetail struct {
	BrokenSeq    int64  `json:"broken_seq"`
	Reason       string `json:"reason"`
	ExpectedHash string `json:"expected_hash"`
	ActualHash   string `json:"actual_hash"`
}

// VerificationRun records one execution of the chain verifier. Runs are
// immutable once created and live outside the chain they verify.
//
// LastVerifiedSeq/LastVerifiedHash form the resume cursor for incremental
// verification: the next run may start walking after that entry, treating
// its hash as the known-good predecessor.
type VerificationRun struct {
	ID               uuid.UUID    `json:"id"`
	RunAt            time.Time    `json:"run_at"`
	Intact           bool         `json:"intact"`
	TotalEntries     int64        `json:"total_entries"`
	VerifiedEntries  int64        `json:"verified_entries"`
	BrokenAtID       *uuid.UUID   `json:"broken_at_id,omitempty"`
	Details          *BreakDetail `json:"details,omitempty"`
	LastVerifiedSeq  int64        `json:"last_verified_seq"`
	LastVerifiedHash string       `json:"last_verified_hash"`
}

// RunRepository persists verification run outcomes and exposes history.
type RunRepository interface {
	Create(ctx context.Context, run *VerificationRun) error
	Get(ctx context.Context, id uuid.UUID) (*VerificationRun, error)
	List(ctx context.Context, limit int) ([]*VerificationRun, error)
	ListRange(ctx context.Context, from, to time.Time) ([]*VerificationRun, error)
	// LatestIntact returns the most recent intact run, or errors.ErrRunNotFound
	// when no intact run exists yet.
	LatestIntact(ctx context.Context) (*VerificationRun, error)
}
