package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarimed/auditchain/internal/domain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
	"github.com/clarimed/auditchain/internal/infra/persistence/memstore"
	"github.com/clarimed/auditchain/internal/service"
)

// TestGenerateComplianceReport verifies activity aggregates and the
// verification summary for a window.
func TestGenerateComplianceReport(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	writer := service.NewWriter(store, newTestHasher(t), testLogger())
	reports := service.NewReportsService(store, store)

	inputs := []service.AppendInput{
		{Action: domain.ActionLogin, ActorID: "user-17", ResourceType: "session"},
		{Action: domain.ActionClientView, ActorID: "user-17", ResourceType: "client", ResourceID: "client-7"},
		{Action: domain.ActionClientView, ActorID: "user-23", ResourceType: "client", ResourceID: "client-9"},
		{Action: domain.ActionConsentRevoke, ResourceType: "consent", ResourceID: "consent-3"}, // system action
	}
	for _, input := range inputs {
		_, err := writer.Append(ctx, input)
		require.NoError(t, err)
	}

	now := time.Now().UTC()
	brokenID := uuid.New()
	require.NoError(t, store.Create(ctx, &domain.VerificationRun{
		ID: uuid.New(), RunAt: now.Add(-10 * time.Minute), Intact: true,
		TotalEntries: 4, VerifiedEntries: 4,
	}))
	require.NoError(t, store.Create(ctx, &domain.VerificationRun{
		ID: brokenID, RunAt: now.Add(-5 * time.Minute), Intact: false,
		TotalEntries: 4, VerifiedEntries: 1,
		Details: &domain.BreakDetail{BrokenSeq: 2, Reason: domain.BreakReasonHashMismatch},
	}))
	// Outside the report window.
	require.NoError(t, store.Create(ctx, &domain.VerificationRun{
		ID: uuid.New(), RunAt: now.Add(-48 * time.Hour), Intact: true,
	}))

	report, err := reports.Generate(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	assert.EqualValues(t, 4, report.Entries.Total)
	assert.EqualValues(t, 2, report.Entries.ByAction["client.view"])
	assert.EqualValues(t, 1, report.Entries.ByAction["login"])
	assert.EqualValues(t, 2, report.Entries.ByActor["user-17"])
	assert.EqualValues(t, 1, report.Entries.ByActor["system"])
	assert.EqualValues(t, 2, report.Entries.ByResourceType["client"])

	assert.EqualValues(t, 2, report.Runs.Total)
	assert.EqualValues(t, 1, report.Runs.Intact)
	assert.EqualValues(t, 1, report.Runs.Broken)
	require.NotNil(t, report.Runs.LatestBreak)
	assert.Equal(t, brokenID, *report.Runs.LatestBreak)
	assert.False(t, report.GeneratedAt.IsZero())
}

// TestGenerateEmptyWindow verifies an empty range yields a zeroed report,
// not an error.
func TestGenerateEmptyWindow(t *testing.T) {
	store := memstore.New()
	reports := service.NewReportsService(store, store)

	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	report, err := reports.Generate(context.Background(), past, past.Add(24*time.Hour))

	require.NoError(t, err)
	assert.Zero(t, report.Entries.Total)
	assert.Zero(t, report.Runs.Total)
	assert.Nil(t, report.Runs.LatestBreak)
}

// TestGenerateRejectsInvertedRange verifies the range boundaries are
// validated.
func TestGenerateRejectsInvertedRange(t *testing.T) {
	store := memstore.New()
	reports := service.NewReportsService(store, store)
	now := time.Now()

	_, err := reports.Generate(context.Background(), now, now)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = reports.Generate(context.Background(), now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
