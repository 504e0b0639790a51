package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karli/internal/report"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(id string, startedAt time.Time) *report.RunReport {
	r := &report.RunReport{
		ID:        id,
		StartedAt: startedAt,
		Actions: map[string][]string{
			"SELL": {"AAPL"},
			"HOLD": {"MSFT"},
			"BUY":  {"NVDA"},
		},
		Skips: []report.TickerSkip{{Ticker: "NEWCO", Reason: report.ReasonNoModel}},
		Users: []report.UserOutcome{
			{
				Username: "alice",
				Status:   report.UserStatusSuccess,
				Orders: []report.OrderResult{
					{Ticker: "NVDA", Side: "buy", Quantity: 10, Status: report.OrderStatusSubmitted, OrderID: "ord-1"},
				},
			},
			{Username: "bob", Status: report.UserStatusSkipped, Reason: report.ReasonMissingCredentials},
		},
	}
	r.Finalize(report.RunStatusCompleted, "", startedAt.Add(time.Minute))
	return r
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved := sampleReport("run-1", time.Date(2025, 3, 10, 21, 5, 0, 0, time.UTC))
	require.NoError(t, s.SaveRun(ctx, saved))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, report.RunStatusCompleted, got.Status)
	assert.Equal(t, saved.Actions, got.Actions)
	assert.Equal(t, saved.Skips, got.Skips)
	assert.Equal(t, saved.Users, got.Users)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 21, 5, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, s.SaveRun(ctx, sampleReport(id, base.Add(time.Duration(i)*24*time.Hour))))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
}

func TestSaveRunOverwritesSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 21, 5, 0, 0, time.UTC)

	first := sampleReport("run-1", start)
	require.NoError(t, s.SaveRun(ctx, first))

	second := sampleReport("run-1", start)
	second.Finalize(report.RunStatusAborted, report.ReasonPolicyUnavailable, start)
	second.Status = report.RunStatusAborted
	second.AbortReason = report.ReasonPolicyUnavailable
	require.NoError(t, s.SaveRun(ctx, second))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunStatusAborted, runs[0].Status)
}

func TestUserHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 21, 5, 0, 0, time.UTC)

	require.NoError(t, s.SaveRun(ctx, sampleReport("run-1", base)))
	require.NoError(t, s.SaveRun(ctx, sampleReport("run-2", base.Add(24*time.Hour))))

	history, err := s.UserHistory(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "run-2", history[0].RunID)
	assert.Equal(t, report.UserStatusSuccess, history[0].Outcome.Status)

	none, err := s.UserHistory(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
