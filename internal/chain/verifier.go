package chain

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clarimed/auditchain/internal/domain"
)

const defaultBatchSize = 500

// EntrySource supplies chain entries in ascending creation order.
type EntrySource interface {
	ListAfter(ctx context.Context, afterSeq int64, limit int) ([]*domain.AuditEntry, error)
}

// Cursor marks the last known-good entry of a previous verification pass.
// Resuming from a cursor trusts that entry's hash, so cursors must only be
// taken from intact runs.
type Cursor struct {
	Seq       int64
	EntryHash string
}

// Result is the outcome of one chain walk. VerifiedEntries counts entries
// checked before the first divergence and equals TotalEntries when intact.
type Result struct {
	Intact           bool
	TotalEntries     int64
	VerifiedEntries  int64
	BrokenAtID       *uuid.UUID
	Details          *domain.BreakDetail
	LastVerifiedSeq  int64
	LastVerifiedHash string
}

// Verifier walks a range of entries in chain order, recomputing expected
// hashes and reporting the first point of divergence. It is read-only and
// idempotent: it never blocks writers and two walks over an unchanged
// chain yield identical results.
type Verifier struct {
	hasher    *Hasher
	source    EntrySource
	batchSize int
}

func NewVerifier(hasher *Hasher, source EntrySource, batchSize int) *Verifier {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Verifier{hasher: hasher, source: source, batchSize: batchSize}
}

// Verify walks the chain from the cursor (or from genesis when cursor is
// nil). An empty range is vacuously intact. After a break is found the walk
// keeps fetching only to count the remaining entries.
func (v *Verifier) Verify(ctx context.Context, cursor *Cursor) (*Result, error) {
	expectedPrev := GenesisHash
	afterSeq := int64(0)
	if cursor != nil {
		expectedPrev = cursor.EntryHash
		afterSeq = cursor.Seq
	}

	result := &Result{
		Intact:           true,
		LastVerifiedSeq:  afterSeq,
		LastVerifiedHash: expectedPrev,
	}

	for {
		batch, err := v.source.ListAfter(ctx, afterSeq, v.batchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch entries after seq %d: %w", afterSeq, err)
		}
		if len(batch) == 0 {
			return result, nil
		}

		for _, e := range batch {
			afterSeq = e.Seq
			result.TotalEntries++
			if !result.Intact {
				continue
			}

			if e.PrevHash != expectedPrev {
				v.markBroken(result, e, domain.BreakReasonLinkMismatch, expectedPrev, e.PrevHash)
				continue
			}

			computed, err := v.hasher.EntryHash(e)
			if err != nil {
				return nil, fmt.Errorf("failed to recompute hash for entry %s: %w", e.ID, err)
			}
			if computed != e.EntryHash {
				v.markBroken(result, e, domain.BreakReasonHashMismatch, computed, e.EntryHash)
				continue
			}

			result.VerifiedEntries++
			result.LastVerifiedSeq = e.Seq
			result.LastVerifiedHash = e.EntryHash
			expectedPrev = e.EntryHash
		}

		if len(batch) < v.batchSize {
			return result, nil
		}
	}
}

func (v *Verifier) markBroken(result *Result, e *domain.AuditEntry, reason, expected, actual string) {
	id := e.ID
	result.Intact = false
	result.BrokenAtID = &id
	result.Details = &domain.BreakDetail{
		BrokenSeq:    e.Seq,
		Reason:       reason,
		ExpectedHash: expected,
		ActualHash:   actual,
	}
}
