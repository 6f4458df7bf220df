package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clarimed/auditchain/internal/chain"
	"github.com/clarimed/auditchain/internal/domain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
)

// maxTailRetries bounds how often an append retries after losing the
// tail race to a concurrent writer.
const maxTailRetries = 5

// AppendInput carries the caller-supplied fields of a new audit entry.
type AppendInput struct {
	Action       domain.Action
	ActorID      string // empty for system actions
	ResourceType string
	ResourceID   string
	Payload      map[string]any
}

// Writer appends hash-linked entries to the audit chain. Successful return
// means the entry is durably stored and linked to its predecessor.
//
// Append failures are escalated, never swallowed: a completed action with
// no audit record is itself a compliance gap, so the final error is logged
// at ERROR with compliance_gap=true before being returned. The caller's
// user-visible action is not expected to roll back on that error
// (fail-open; see DESIGN.md).
type Writer struct {
	entries domain.EntryRepository
	hasher  *chain.Hasher
	logger  *slog.Logger
	now     func() time.Time
}

func NewWriter(entries domain.EntryRepository, hasher *chain.Hasher, logger *slog.Logger) *Writer {
	return &Writer{
		entries: entries,
		hasher:  hasher,
		logger:  logger,
		now:     time.Now,
	}
}

// Append builds, hashes and stores a new entry linked to the current chain
// tail. Losing the tail race to a concurrent writer triggers a retry
// against the refreshed tail; any other storage failure is retried exactly
// once before escalating.
func (w *Writer) Append(ctx context.Context, input AppendInput) (*domain.AuditEntry, error) {
	if err := w.validate(input); err != nil {
		return nil, err
	}

	var lastErr error
	transientRetried := false
	for attempt := 0; attempt < maxTailRetries; attempt++ {
		prevHash, err := w.tailHash(ctx)
		if err != nil {
			lastErr = err
			if transientRetried {
				break
			}
			transientRetried = true
			w.logger.WarnContext(ctx, "transient failure reading chain tail, retrying once",
				"action", string(input.Action), "error", err.Error())
			continue
		}

		entry := &domain.AuditEntry{
			ID:           uuid.New(),
			OccurredAt:   w.now().UTC(),
			ActorID:      input.ActorID,
			Action:       input.Action,
			ResourceType: input.ResourceType,
			ResourceID:   input.ResourceID,
			Payload:      input.Payload,
			PrevHash:     prevHash,
		}

		entry.EntryHash, err = w.hasher.EntryHash(entry)
		if err != nil {
			lastErr = fmt.Errorf("failed to hash entry: %w", err)
			break
		}

		err = w.entries.Append(ctx, entry)
		if err == nil {
			w.logger.LogAttrs(ctx, slog.LevelInfo, "audit_entry_appended",
				slog.String("entry_id", entry.ID.String()),
				slog.Int64("seq", entry.Seq),
				slog.String("action", string(entry.Action)),
				slog.String("actor_id", entry.ActorID),
				slog.String("resource_type", entry.ResourceType),
				slog.String("resource_id", entry.ResourceID),
			)
			return entry, nil
		}

		lastErr = err
		if isTailConflict(err) {
			w.logger.WarnContext(ctx, "tail conflict on audit append, retrying with refreshed tail",
				"attempt", attempt+1, "action", string(input.Action))
			continue
		}
		// Other storage errors (connectivity loss and the like) get one
		// retry against the then-current tail before escalating.
		if transientRetried {
			break
		}
		transientRetried = true
		w.logger.WarnContext(ctx, "transient audit append failure, retrying once",
			"action", string(input.Action), "error", err.Error())
	}

	// Escalation channel for missing audit records, distinct from
	// chain-break alerts.
	w.logger.ErrorContext(ctx, "audit append failed",
		"compliance_gap", true,
		"action", string(input.Action),
		"actor_id", input.ActorID,
		"resource_type", input.ResourceType,
		"resource_id", input.ResourceID,
		"error", lastErr.Error(),
	)
	return nil, fmt.Errorf("%w: %w", apperrors.ErrAppendFailed, lastErr)
}

func (w *Writer) validate(input AppendInput) error {
	if input.Action == "" {
		return fmt.Errorf("%w: action is required", apperrors.ErrInvalidInput)
	}
	if input.ResourceType == "" {
		return fmt.Errorf("%w: resource_type is required", apperrors.ErrInvalidInput)
	}
	return nil
}

func (w *Writer) tailHash(ctx context.Context) (string, error) {
	tail, err := w.entries.Latest(ctx)
	switch {
	case err == nil:
		return tail.EntryHash, nil
	case isEmptyChain(err):
		return chain.GenesisHash, nil
	default:
		return "", fmt.Errorf("failed to read chain tail: %w", err)
	}
}
