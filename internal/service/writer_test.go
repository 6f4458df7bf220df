package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarimed/auditchain/internal/chain"
	"github.com/clarimed/auditchain/internal/domain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
	"github.com/clarimed/auditchain/internal/infra/persistence/memstore"
	"github.com/clarimed/auditchain/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHasher(t *testing.T) *chain.Hasher {
	t.Helper()
	hasher, err := chain.NewHasher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return hasher
}

// TestAppendFormsVerifiableChain walks a realistic session: login, chart
// view, consent change, export, and a failed login, then checks the stored
// entries form one intact chain.
func TestAppendFormsVerifiableChain(t *testing.T) {
	ctx := context.Background()
	hasher := newTestHasher(t)
	store := memstore.New()
	writer := service.NewWriter(store, hasher, testLogger())

	inputs := []service.AppendInput{
		{Action: domain.ActionLogin, ActorID: "user-17", ResourceType: "session", ResourceID: "sess-1"},
		{Action: domain.ActionClientView, ActorID: "user-17", ResourceType: "client", ResourceID: "client-7"},
		{Action: domain.ActionConsentGrant, ActorID: "user-17", ResourceType: "consent", ResourceID: "consent-3", Payload: map[string]any{"scope": "treatment"}},
		{Action: domain.ActionExportPDF, ActorID: "user-17", ResourceType: "client", ResourceID: "client-7", Payload: map[string]any{"pages": 12}},
		{Action: domain.ActionLoginFailed, ActorID: "user-99", ResourceType: "session", ResourceID: ""},
	}

	var appended []*domain.AuditEntry
	for _, input := range inputs {
		entry, err := writer.Append(ctx, input)
		require.NoError(t, err)
		appended = append(appended, entry)
	}

	// Sequence numbers are assigned in order and links are well formed.
	assert.Equal(t, chain.GenesisHash, appended[0].PrevHash)
	for i, entry := range appended {
		assert.EqualValues(t, i+1, entry.Seq)
		if i > 0 {
			assert.Equal(t, appended[i-1].EntryHash, entry.PrevHash)
		}
	}

	result, err := chain.NewVerifier(hasher, store, 0).Verify(ctx, nil)
	require.NoError(t, err)
	assert.True(t, result.Intact)
	assert.EqualValues(t, 5, result.TotalEntries)
	assert.EqualValues(t, 5, result.VerifiedEntries)
}

// TestAppendSystemAction verifies entries without a human actor are
// accepted.
func TestAppendSystemAction(t *testing.T) {
	writer := service.NewWriter(memstore.New(), newTestHasher(t), testLogger())

	entry, err := writer.Append(context.Background(), service.AppendInput{
		Action:       domain.ActionConsentRevoke,
		ResourceType: "consent",
		ResourceID:   "consent-3",
		Payload:      map[string]any{"reason": "retention_expiry"},
	})

	require.NoError(t, err)
	assert.Empty(t, entry.ActorID)
	assert.NotEmpty(t, entry.EntryHash)
}

// TestAppendValidation verifies required fields are enforced before any
// storage work happens.
func TestAppendValidation(t *testing.T) {
	writer := service.NewWriter(memstore.New(), newTestHasher(t), testLogger())

	_, err := writer.Append(context.Background(), service.AppendInput{
		ResourceType: "client",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = writer.Append(context.Background(), service.AppendInput{
		Action: domain.ActionClientView,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// TestAppendConcurrentWriters verifies concurrent appends all land and
// still form a single unbroken chain: losers of the tail race retry
// against the refreshed tail instead of forking.
func TestAppendConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	hasher := newTestHasher(t)
	store := memstore.New()
	writer := service.NewWriter(store, hasher, testLogger())

	const writers = 5
	var waitGroup sync.WaitGroup
	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		waitGroup.Add(1)
		go func(i int) {
			defer waitGroup.Done()
			_, errs[i] = writer.Append(ctx, service.AppendInput{
				Action:       domain.ActionNoteCreate,
				ActorID:      fmt.Sprintf("user-%d", i),
				ResourceType: "note",
				ResourceID:   fmt.Sprintf("note-%d", i),
			})
		}(i)
	}
	waitGroup.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	result, err := chain.NewVerifier(hasher, store, 0).Verify(ctx, nil)
	require.NoError(t, err)
	assert.True(t, result.Intact)
	assert.EqualValues(t, writers, result.TotalEntries)
	assert.EqualValues(t, writers, result.VerifiedEntries)
}

// conflictingEntries fails the first few appends with a tail conflict
// before delegating to the real store.
type conflictingEntries struct {
	domain.EntryRepository
	mu        sync.Mutex
	conflicts int
}

func (c *conflictingEntries) Append(ctx context.Context, entry *domain.AuditEntry) error {
	c.mu.Lock()
	remaining := c.conflicts
	if remaining > 0 {
		c.conflicts--
	}
	c.mu.Unlock()

	if remaining > 0 {
		return apperrors.ErrTailConflict
	}
	return c.EntryRepository.Append(ctx, entry)
}

// TestAppendRetriesTailConflict verifies a bounded number of tail
// conflicts is absorbed by retrying, and exceeding the bound surfaces as a
// write failure.
func TestAppendRetriesTailConflict(t *testing.T) {
	ctx := context.Background()

	repo := &conflictingEntries{EntryRepository: memstore.New(), conflicts: 2}
	writer := service.NewWriter(repo, newTestHasher(t), testLogger())

	entry, err := writer.Append(ctx, service.AppendInput{
		Action:       domain.ActionClientUpdate,
		ActorID:      "user-17",
		ResourceType: "client",
		ResourceID:   "client-7",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, entry.Seq)

	exhausted := &conflictingEntries{EntryRepository: memstore.New(), conflicts: 100}
	writer = service.NewWriter(exhausted, newTestHasher(t), testLogger())

	_, err = writer.Append(ctx, service.AppendInput{
		Action:       domain.ActionClientUpdate,
		ActorID:      "user-17",
		ResourceType: "client",
		ResourceID:   "client-7",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAppendFailed)
	assert.ErrorIs(t, err, apperrors.ErrTailConflict)
}

// flakyEntries fails the first few appends with a transient storage error
// before delegating to the real store.
type flakyEntries struct {
	domain.EntryRepository
	mu       sync.Mutex
	failures int
	calls    int
}

var errConnReset = errors.New("connection reset by peer")

func (f *flakyEntries) Append(ctx context.Context, entry *domain.AuditEntry) error {
	f.mu.Lock()
	f.calls++
	remaining := f.failures
	if remaining > 0 {
		f.failures--
	}
	f.mu.Unlock()

	if remaining > 0 {
		return errConnReset
	}
	return f.EntryRepository.Append(ctx, entry)
}

func (f *flakyEntries) appendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// TestAppendAbsorbsTransientFailure verifies a single connectivity blip is
// absorbed by one retry against the refreshed tail and the entry still
// lands.
func TestAppendAbsorbsTransientFailure(t *testing.T) {
	repo := &flakyEntries{EntryRepository: memstore.New(), failures: 1}
	writer := service.NewWriter(repo, newTestHasher(t), testLogger())

	entry, err := writer.Append(context.Background(), service.AppendInput{
		Action:       domain.ActionLogin,
		ActorID:      "user-17",
		ResourceType: "session",
	})

	require.NoError(t, err)
	assert.EqualValues(t, 1, entry.Seq)
	assert.Equal(t, 2, repo.appendCalls())
}

// TestAppendEscalatesStorageFailure verifies a persistent storage failure
// is surfaced as a write failure after exactly one retry, so callers can
// proceed with the user-visible action while the gap is escalated.
func TestAppendEscalatesStorageFailure(t *testing.T) {
	repo := &flakyEntries{EntryRepository: memstore.New(), failures: 100}
	writer := service.NewWriter(repo, newTestHasher(t), testLogger())

	start := time.Now()
	_, err := writer.Append(context.Background(), service.AppendInput{
		Action:       domain.ActionLogin,
		ActorID:      "user-17",
		ResourceType: "session",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAppendFailed)
	assert.ErrorIs(t, err, errConnReset)
	assert.Equal(t, 2, repo.appendCalls()) // first attempt plus one retry
	assert.Less(t, time.Since(start), time.Second)
}
