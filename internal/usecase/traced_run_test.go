package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/mcptrace/internal/exectrace"
	"github.com/i2y/mcptrace/internal/usecase"
	"github.com/i2y/mcptrace/pkg/shared/mcpjsonrpc"
)

// stubCaller answers every CallTool with a fixed result or error. Unless
// silent, an initialized stub reports its envelope like the real client.
type stubCaller struct {
	initialized bool
	silent      bool
	result      *mcpjsonrpc.CallToolResult
	err         error
	calls       int
}

func (s *stubCaller) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpjsonrpc.CallToolResult, error) {
	s.calls++
	if s.initialized && !s.silent {
		req, err := mcpjsonrpc.NewRequest("2025-06-18", mcpjsonrpc.NumericID(int64(s.calls)), mcpjsonrpc.MethodToolsCall,
			mcpjsonrpc.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return nil, err
		}
		if trace := mcpjsonrpc.ContextClientTrace(ctx); trace != nil && trace.SendingRequest != nil {
			trace.SendingRequest(req)
		}
	}
	return s.result, s.err
}

func (s *stubCaller) ServerName() string { return "srv" }

func (s *stubCaller) Initialized() bool { return s.initialized }

// recordingSink keeps the last exported run.
type recordingSink struct {
	runID string
	steps []exectrace.Step
	err   error
}

func (r *recordingSink) Export(ctx context.Context, runID string, steps []exectrace.Step) error {
	r.runID = runID
	r.steps = steps
	return r.err
}

type hop struct {
	kind   exectrace.Kind
	actor  string
	target string
}

func hops(steps []exectrace.Step) []hop {
	out := make([]hop, 0, len(steps))
	for _, s := range steps {
		out = append(out, hop{s.Kind, s.Actor, s.Target})
	}
	return out
}

func TestTracedRun_RequestHopRecordsSentEnvelope(t *testing.T) {
	ctx := context.Background()
	textResult, err := mcpjsonrpc.TextResult("ok")
	require.NoError(t, err)
	args := map[string]interface{}{"text": "hi"}

	run := usecase.NewTracedRun(&stubCaller{initialized: true, result: textResult}, exectrace.NewTracker(), slog.New(slog.DiscardHandler))
	_, err = run.CallTool(ctx, "echo", args)
	require.NoError(t, err)

	steps := run.Tracker().Snapshot()
	require.Len(t, steps, 6)
	assert.Equal(t, map[string]interface{}{
		"jsonrpc":         "2.0",
		"protocolVersion": "2025-06-18",
		"id":              float64(1),
		"method":          "tools/call",
		"params":          map[string]interface{}{"name": "echo", "arguments": map[string]interface{}{"text": "hi"}},
	}, steps[1].Metadata)

	silent := usecase.NewTracedRun(&stubCaller{initialized: true, silent: true, result: textResult}, exectrace.NewTracker(), slog.New(slog.DiscardHandler))
	_, err = silent.CallTool(ctx, "echo", args)
	require.NoError(t, err)
	steps = silent.Tracker().Snapshot()
	require.Len(t, steps, 6)
	assert.Equal(t, exectrace.KindInfo, steps[1].Kind)
	assert.Equal(t, "srv", steps[1].Target)
	assert.Equal(t, "tools/call", steps[1].Metadata["method"])
}

func TestTracedRun_CallTool(t *testing.T) {
	textResult, err := mcpjsonrpc.TextResult(map[string]string{"text": "hi"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		caller   *stubCaller
		wantErr  bool
		wantHops []hop
	}{
		{
			name:   "success records the full hop pair",
			caller: &stubCaller{initialized: true, result: textResult},
			wantHops: []hop{
				{exectrace.KindToolCallIssued, "decision-maker", "dispatcher"},
				{exectrace.KindInfo, "dispatcher", "srv"},
				{exectrace.KindInfo, "srv", "tool:echo"},
				{exectrace.KindInfo, "tool:echo", "srv"},
				{exectrace.KindInfo, "srv", "dispatcher"},
				{exectrace.KindToolCallCompleted, "dispatcher", "decision-maker"},
			},
		},
		{
			name:    "server rejection",
			caller:  &stubCaller{initialized: true, err: &mcpjsonrpc.Error{Code: mcpjsonrpc.CodeServerErrorToolNotFound, Message: "tool not found: echo"}},
			wantErr: true,
			wantHops: []hop{
				{exectrace.KindToolCallIssued, "decision-maker", "dispatcher"},
				{exectrace.KindInfo, "dispatcher", "srv"},
				{exectrace.KindError, "srv", "dispatcher"},
				{exectrace.KindError, "dispatcher", "decision-maker"},
			},
		},
		{
			name:    "tool failure",
			caller:  &stubCaller{initialized: true, err: &mcpjsonrpc.Error{Code: mcpjsonrpc.CodeInternalError, Message: "tool execution failed"}},
			wantErr: true,
			wantHops: []hop{
				{exectrace.KindToolCallIssued, "decision-maker", "dispatcher"},
				{exectrace.KindInfo, "dispatcher", "srv"},
				{exectrace.KindInfo, "srv", "tool:echo"},
				{exectrace.KindError, "tool:echo", "srv"},
				{exectrace.KindError, "srv", "dispatcher"},
				{exectrace.KindError, "dispatcher", "decision-maker"},
			},
		},
		{
			name:    "transport failure",
			caller:  &stubCaller{initialized: true, err: errors.Join(usecase.ErrTransportFailure, errors.New("connection refused"))},
			wantErr: true,
			wantHops: []hop{
				{exectrace.KindToolCallIssued, "decision-maker", "dispatcher"},
				{exectrace.KindInfo, "dispatcher", "srv"},
				{exectrace.KindError, "dispatcher", "srv"},
				{exectrace.KindError, "dispatcher", "decision-maker"},
			},
		},
		{
			name:    "uninitialized session records no envelope",
			caller:  &stubCaller{err: errors.New("session not initialized")},
			wantErr: true,
			wantHops: []hop{
				{exectrace.KindToolCallIssued, "decision-maker", "dispatcher"},
				{exectrace.KindError, "dispatcher", "decision-maker"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := usecase.NewTracedRun(tt.caller, exectrace.NewTracker(), slog.New(slog.DiscardHandler))

			res, err := run.CallTool(context.Background(), "echo", map[string]interface{}{"text": "hi"})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, res)
			} else {
				require.NoError(t, err)
				assert.Equal(t, `{"text":"hi"}`, res.Text())
			}

			steps := run.Tracker().Snapshot()
			assert.Equal(t, tt.wantHops, hops(steps))
			assert.Equal(t, 1, tt.caller.calls)

			_, ok := steps[0].Duration()
			assert.True(t, ok, "issued step carries the call duration")
			assert.Equal(t, "echo", steps[0].Metadata["tool"])

			d := exectrace.BuildDiagram(steps)
			assert.Empty(t, d.Orphans)
		})
	}
}

func TestTracedRun_StartFinish(t *testing.T) {
	ctx := context.Background()
	textResult, err := mcpjsonrpc.TextResult("pong")
	require.NoError(t, err)
	sink := &recordingSink{}
	failing := &recordingSink{err: errors.New("disk full")}
	run := usecase.NewTracedRun(&stubCaller{initialized: true, result: textResult}, exectrace.NewTracker(),
		slog.New(slog.DiscardHandler), sink, failing)

	runID := run.Start("ping the server")
	run.Narrate("choosing echo")
	_, err = run.CallTool(ctx, "echo", nil)
	require.NoError(t, err)
	steps, exportErr := run.Finish(ctx, nil)

	assert.ErrorContains(t, exportErr, "disk full")
	require.Len(t, steps, 9)
	assert.Equal(t, exectrace.KindRunStart, steps[0].Kind)
	assert.Equal(t, "ping the server", steps[0].Content)
	assert.Equal(t, runID, steps[0].Metadata["runId"])
	assert.Equal(t, exectrace.KindInfo, steps[1].Kind)
	assert.Empty(t, steps[1].Target)
	last := steps[len(steps)-1]
	assert.Equal(t, exectrace.KindRunEnd, last.Kind)
	assert.Equal(t, "completed", last.Metadata["status"])
	_, ok := last.Duration()
	assert.True(t, ok)

	assert.Equal(t, runID, sink.runID)
	assert.Equal(t, steps, sink.steps)

	// A second run on the same tracker restarts numbering.
	secondID := run.Start("again")
	assert.NotEqual(t, runID, secondID)
	steps, err = run.Finish(ctx, errors.New("gave up"))
	assert.ErrorContains(t, err, "disk full")
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].ID)
	assert.Equal(t, "failed", steps[1].Metadata["status"])
	assert.Equal(t, "gave up", steps[1].Content)
}
