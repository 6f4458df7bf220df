package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarimed/auditchain/internal/chain"
	"github.com/clarimed/auditchain/internal/domain"
	"github.com/clarimed/auditchain/internal/infra/persistence/memstore"
	"github.com/clarimed/auditchain/internal/scheduler"
	"github.com/clarimed/auditchain/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestTriggerNowRunsVerification verifies a manual trigger executes one
// verification pass and records its run.
func TestTriggerNowRunsVerification(t *testing.T) {
	ctx := context.Background()

	hasher, err := chain.NewHasher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	store := memstore.New()
	writer := service.NewWriter(store, hasher, testLogger())
	for i := 0; i < 3; i++ {
		_, err := writer.Append(ctx, service.AppendInput{
			Action:       domain.ActionNoteView,
			ActorID:      "user-17",
			ResourceType: "note",
			ResourceID:   "note-1001",
		})
		require.NoError(t, err)
	}

	verifier := chain.NewVerifier(hasher, store, 0)
	verification := service.NewVerificationService(verifier, store, service.NewLogNotifier(testLogger()), testLogger())

	sched := scheduler.New(verification, scheduler.Config{Interval: time.Hour, Incremental: true}, testLogger())
	sched.Start()
	defer sched.Stop()

	sched.TriggerNow()

	require.Eventually(t, func() bool {
		runs, err := store.List(ctx, 10)
		return err == nil && len(runs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	runs, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.True(t, runs[0].Intact)
	assert.EqualValues(t, 3, runs[0].TotalEntries)
}

// TestStopWaitsForWorker verifies Stop returns cleanly with no pending
// work.
func TestStopWaitsForWorker(t *testing.T) {
	store := memstore.New()
	hasher, err := chain.NewHasher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	verifier := chain.NewVerifier(hasher, store, 0)
	verification := service.NewVerificationService(verifier, store, service.NewLogNotifier(testLogger()), testLogger())

	sched := scheduler.New(verification, scheduler.Config{Interval: time.Hour}, testLogger())
	sched.Start()

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
