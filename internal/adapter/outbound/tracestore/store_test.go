package tracestore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/mcptrace/internal/adapter/outbound/tracestore"
	"github.com/i2y/mcptrace/internal/exectrace"
)

// testDSN returns a unique shared-memory DSN for test isolation.
func testDSN(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
}

func newTestStore(t *testing.T) *tracestore.Store {
	t.Helper()
	store, err := tracestore.Open(testDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func recordRun(t *testing.T, task string, start time.Time, fail bool) (string, []exectrace.Step) {
	t.Helper()
	now := start
	tracker := exectrace.NewTracker(exectrace.WithClock(func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}))
	runID := tracker.Reset()
	tracker.Record(exectrace.KindRunStart, task, "user", "decision-maker", map[string]interface{}{"runId": runID})
	issued := tracker.Record(exectrace.KindToolCallIssued, "call echo", "decision-maker", "dispatcher",
		map[string]interface{}{"tool": "echo", "arguments": map[string]interface{}{"message": "hi"}})
	tracker.UpdateDuration(issued, 12*time.Millisecond)
	status := "completed"
	if fail {
		tracker.Record(exectrace.KindError, "tool not found", "dispatcher", "decision-maker", nil)
		status = "failed"
	}
	tracker.Record(exectrace.KindRunEnd, status, "decision-maker", "user", map[string]interface{}{"status": status})
	return runID, tracker.Snapshot()
}

func TestStore_ExportLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, steps := recordRun(t, "say hi", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), false)
	require.NoError(t, store.Export(ctx, runID, steps))

	loaded, err := store.LoadRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, loaded, len(steps))
	for i := range steps {
		assert.Equal(t, steps[i].ID, loaded[i].ID)
		assert.Equal(t, steps[i].Kind, loaded[i].Kind)
		assert.True(t, steps[i].Timestamp.Equal(loaded[i].Timestamp))
		assert.Equal(t, steps[i].Actor, loaded[i].Actor)
		assert.Equal(t, steps[i].Target, loaded[i].Target)
		assert.Equal(t, steps[i].Content, loaded[i].Content)
		assert.Equal(t, steps[i].DurationMS, loaded[i].DurationMS)
	}
	assert.Equal(t, map[string]interface{}{"message": "hi"}, loaded[1].Metadata["arguments"])
	assert.Nil(t, loaded[0].DurationMS)
}

func TestStore_ExportReplacesRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, steps := recordRun(t, "say hi", time.Now(), false)
	require.NoError(t, store.Export(ctx, runID, steps))
	require.NoError(t, store.Export(ctx, runID, steps[:2]))

	loaded, err := store.LoadRun(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "incomplete", runs[0].Status)
}

func TestStore_ListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	older, olderSteps := recordRun(t, "first", base, false)
	newer, newerSteps := recordRun(t, "second", base.Add(time.Hour), true)
	require.NoError(t, store.Export(ctx, older, olderSteps))
	require.NoError(t, store.Export(ctx, newer, newerSteps))

	tests := []struct {
		name    string
		limit   int
		wantIDs []string
	}{
		{name: "all runs newest first", limit: 0, wantIDs: []string{newer, older}},
		{name: "limited", limit: 1, wantIDs: []string{newer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.ListRuns(ctx, tt.limit)
			require.NoError(t, err)
			var ids []string
			for _, r := range runs {
				ids = append(ids, r.RunID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "second", runs[0].Task)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Equal(t, 4, runs[0].Steps)
	assert.Equal(t, "completed", runs[1].Status)
}

func TestStore_LoadUnknownRun(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, tracestore.ErrRunNotFound)
}

func TestStore_ExportEmptyIsNoop(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Export(context.Background(), "empty", nil))
	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
