package chain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarimed/auditchain/internal/chain"
	"github.com/clarimed/auditchain/internal/domain"
)

func testHasher(t *testing.T) *chain.Hasher {
	t.Helper()
	hasher, err := chain.NewHasher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return hasher
}

func sampleEntry() *domain.AuditEntry {
	return &domain.AuditEntry{
		ID:           uuid.New(),
		OccurredAt:   time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		ActorID:      "user-17",
		Action:       domain.ActionNoteCreate,
		ResourceType: "note",
		ResourceID:   "note-1001",
		Payload:      map[string]any{"clientId": "client-7", "section": "assessment"},
		PrevHash:     chain.GenesisHash,
	}
}

// TestNewHasherRejectsShortKey verifies weak keys are refused at
// construction time.
func TestNewHasherRejectsShortKey(t *testing.T) {
	_, err := chain.NewHasher([]byte("too-short"))
	require.Error(t, err)
}

// TestEntryHashDeterministic verifies the same entry always hashes to the
// same 64-char hex digest.
func TestEntryHashDeterministic(t *testing.T) {
	hasher := testHasher(t)
	entry := sampleEntry()

	first, err := hasher.EntryHash(entry)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	again, err := hasher.EntryHash(entry)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

// TestEntryHashDependsOnKey verifies a different HMAC key yields a
// different digest for the same entry.
func TestEntryHashDependsOnKey(t *testing.T) {
	entry := sampleEntry()

	hashA, err := testHasher(t).EntryHash(entry)
	require.NoError(t, err)

	other, err := chain.NewHasher([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	hashB, err := other.EntryHash(entry)
	require.NoError(t, err)

	assert.NotEqual(t, hashA, hashB)
}

// TestEntryHashCoversAllFields verifies every hashed field, including the
// predecessor link and the payload, changes the digest when it changes.
func TestEntryHashCoversAllFields(t *testing.T) {
	hasher := testHasher(t)
	baseline, err := hasher.EntryHash(sampleEntry())
	require.NoError(t, err)

	mutations := map[string]func(*domain.AuditEntry){
		"occurred_at":   func(e *domain.AuditEntry) { e.OccurredAt = e.OccurredAt.Add(time.Nanosecond) },
		"actor_id":      func(e *domain.AuditEntry) { e.ActorID = "user-18" },
		"action":        func(e *domain.AuditEntry) { e.Action = domain.ActionNoteView },
		"resource_type": func(e *domain.AuditEntry) { e.ResourceType = "client" },
		"resource_id":   func(e *domain.AuditEntry) { e.ResourceID = "note-1002" },
		"payload":       func(e *domain.AuditEntry) { e.Payload["section"] = "plan" },
		"prev_hash":     func(e *domain.AuditEntry) { e.PrevHash = "deadbeef" },
	}

	for field, mutate := range mutations {
		entry := sampleEntry()
		mutate(entry)

		mutated, err := hasher.EntryHash(entry)
		require.NoError(t, err)
		assert.NotEqual(t, baseline, mutated, "mutating %s should change the hash", field)
	}
}

// TestMatches verifies the stored-vs-recomputed comparison.
func TestMatches(t *testing.T) {
	hasher := testHasher(t)
	entry := sampleEntry()

	var err error
	entry.EntryHash, err = hasher.EntryHash(entry)
	require.NoError(t, err)

	ok, err := hasher.Matches(entry)
	require.NoError(t, err)
	assert.True(t, ok)

	entry.Payload["section"] = "tampered"
	ok, err = hasher.Matches(entry)
	require.NoError(t, err)
	assert.False(t, ok)
}
