// Package memstore is an in-memory implementation of the audit
// repositories. It backs unit tests and local development the same way the
// Postgres repositories back production, including the tail-conflict
// semantics of the append path.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clarimed/auditchain/internal/domain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
)

// Store holds all three audit tables behind a single mutex. It implements
// domain.EntryRepository, domain.RunRepository and
// domain.AcknowledgmentRepository.
type Store struct {
	mu      sync.RWMutex
	entries []*domain.AuditEntry
	prevSet map[string]struct{}
	nextSeq int64
	runs    []*domain.VerificationRun
	runByID map[uuid.UUID]*domain.VerificationRun
	acks    map[uuid.UUID]*domain.AlertAcknowledgment
}

func New() *Store {
	return &Store{
		prevSet: make(map[string]struct{}),
		nextSeq: 1,
		runByID: make(map[uuid.UUID]*domain.VerificationRun),
		acks:    make(map[uuid.UUID]*domain.AlertAcknowledgment),
	}
}

// Append mirrors the Postgres UNIQUE(prev_hash) constraint: only one entry
// may ever claim a given predecessor, so the loser of a tail race fails
// with ErrTailConflict and must retry against the refreshed tail.
func (s *Store) Append(ctx context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.prevSet[entry.PrevHash]; taken {
		return apperrors.ErrTailConflict
	}

	stored := *entry
	stored.Seq = s.nextSeq
	s.nextSeq++

	s.entries = append(s.entries, &stored)
	s.prevSet[entry.PrevHash] = struct{}{}
	entry.Seq = stored.Seq
	return nil
}

func (s *Store) Latest(ctx context.Context) (*domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, apperrors.ErrEmptyChain
	}
	tail := *s.entries[len(s.entries)-1]
	return &tail, nil
}

func (s *Store) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]*domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.AuditEntry
	for _, e := range s.entries {
		if e.Seq <= afterSeq {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) AggregateRange(ctx context.Context, from, to time.Time) (*domain.EntryAggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := &domain.EntryAggregates{
		ByAction:       make(map[string]int64),
		ByActor:        make(map[string]int64),
		ByResourceType: make(map[string]int64),
	}
	for _, e := range s.entries {
		if e.OccurredAt.Before(from) || !e.OccurredAt.Before(to) {
			continue
		}
		agg.Total++
		agg.ByAction[string(e.Action)]++
		actor := e.ActorID
		if actor == "" {
			actor = "system"
		}
		agg.ByActor[actor]++
		agg.ByResourceType[e.ResourceType]++
	}
	return agg, nil
}

// Tamper mutates a stored entry in place, bypassing the append-only
// contract. Test helper for exercising break detection.
func (s *Store) Tamper(seq int64, mutate func(*domain.AuditEntry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Seq == seq {
			mutate(e)
			return true
		}
	}
	return false
}

func (s *Store) Create(ctx context.Context, run *domain.VerificationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *run
	s.runs = append(s.runs, &stored)
	s.runByID[run.ID] = &stored
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.VerificationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runByID[id]
	if !ok {
		return nil, apperrors.ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]*domain.VerificationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.VerificationRun, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		copied := *s.runs[i]
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListRange(ctx context.Context, from, to time.Time) ([]*domain.VerificationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.VerificationRun
	for _, run := range s.runs {
		if run.RunAt.Before(from) || !run.RunAt.Before(to) {
			continue
		}
		copied := *run
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.After(out[j].RunAt) })
	return out, nil
}

func (s *Store) LatestIntact(ctx context.Context) (*domain.VerificationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].Intact {
			copied := *s.runs[i]
			return &copied, nil
		}
	}
	return nil, apperrors.ErrRunNotFound
}

func (s *Store) Upsert(ctx context.Context, ack *domain.AlertAcknowledgment) (*domain.AlertAcknowledgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.acks[ack.AlertID]; ok {
		existing.Status = ack.Status
		existing.ResolutionNotes = ack.ResolutionNotes
		existing.ResolvedAt = ack.ResolvedAt
		copied := *existing
		return &copied, nil
	}

	stored := *ack
	s.acks[ack.AlertID] = &stored
	copied := stored
	return &copied, nil
}

func (s *Store) GetAcknowledgment(ctx context.Context, alertID uuid.UUID) (*domain.AlertAcknowledgment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ack, ok := s.acks[alertID]
	if !ok {
		return nil, apperrors.ErrAckNotFound
	}
	copied := *ack
	return &copied, nil
}

func (s *Store) ListAlerts(ctx context.Context, statusFilter string, limit int) ([]*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Alert
	for i := len(s.runs) - 1; i >= 0; i-- {
		run := s.runs[i]
		if run.Intact {
			continue
		}

		var ack *domain.AlertAcknowledgment
		if stored, ok := s.acks[run.ID]; ok {
			copied := *stored
			ack = &copied
		}

		switch {
		case statusFilter == "":
		case statusFilter == "unacknowledged":
			if ack != nil {
				continue
			}
		default:
			if ack == nil || string(ack.Status) != statusFilter {
				continue
			}
		}

		runCopy := *run
		out = append(out, &domain.Alert{Run: &runCopy, Acknowledgment: ack})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
