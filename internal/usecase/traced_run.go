package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/i2y/mcptrace/internal/exectrace"
	"github.com/i2y/mcptrace/pkg/shared/mcpjsonrpc"
)

// Participant names used in traces.
const (
	ActorUser          = "user"
	ActorDecisionMaker = "decision-maker"
	ActorDispatcher    = "dispatcher"
)

// ToolCaller is the client side of the protocol as seen by a traced run.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpjsonrpc.CallToolResult, error)
	ServerName() string
	// Initialized reports whether a call would reach the network at all.
	Initialized() bool
}

// TraceSink receives the final snapshot of every finished run.
type TraceSink interface {
	Export(ctx context.Context, runID string, steps []exectrace.Step) error
}

// TracedRun drives one task run at a time over a ToolCaller and records every
// hop into its tracker. Use one TracedRun (and tracker) per concurrent task.
type TracedRun struct {
	caller  ToolCaller
	tracker *exectrace.Tracker
	sinks   []TraceSink
	task    string
	started time.Time
	logger  *slog.Logger
}

// NewTracedRun creates a traced run bound to tracker.
func NewTracedRun(caller ToolCaller, tracker *exectrace.Tracker, logger *slog.Logger, sinks ...TraceSink) *TracedRun {
	return &TracedRun{
		caller:  caller,
		tracker: tracker,
		sinks:   sinks,
		logger:  logger.With("usecase", "TracedRun"),
	}
}

// Tracker returns the tracker the run records into.
func (r *TracedRun) Tracker() *exectrace.Tracker { return r.tracker }

// Start clears the tracker and records the run-start step. It returns the run id.
func (r *TracedRun) Start(task string) string {
	runID := r.tracker.Reset()
	r.task = task
	r.started = time.Now()
	r.tracker.Record(exectrace.KindRunStart, task, ActorUser, ActorDecisionMaker, map[string]interface{}{"runId": runID})
	r.logger.Info("Run started", slog.String("run_id", runID), slog.String("task", task))
	return runID
}

// Narrate records free-form reasoning of the decision-maker.
func (r *TracedRun) Narrate(content string) int {
	return r.tracker.Record(exectrace.KindInfo, content, ActorDecisionMaker, "", nil)
}

// CallTool performs one tool call and records the request/response hop pair:
//
//	1 decision-maker -> dispatcher   tool-call-issued
//	2 dispatcher     -> server       request envelope
//	3 server         -> tool         dispatch
//	4 tool           -> server       tool result
//	5 server         -> dispatcher   response envelope
//	6 dispatcher     -> decision-maker tool-call-completed
//
// On failure an error step replaces the hop where the failure happened and
// another reports it back to the decision-maker; later success steps are skipped.
func (r *TracedRun) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcpjsonrpc.CallToolResult, error) {
	server := r.caller.ServerName()
	tool := "tool:" + name
	start := time.Now()

	issued := r.tracker.Record(exectrace.KindToolCallIssued, fmt.Sprintf("call %s", name),
		ActorDecisionMaker, ActorDispatcher, map[string]interface{}{"tool": name, "arguments": args})
	defer func() { r.tracker.UpdateDuration(issued, time.Since(start)) }()

	// The request hop is the envelope the caller actually sends. Callers that
	// do not report it get a reconstruction when they were able to send at all.
	initialized := r.caller.Initialized()
	sent := false
	ctx = mcpjsonrpc.WithClientTrace(ctx, &mcpjsonrpc.ClientTrace{
		SendingRequest: func(req *mcpjsonrpc.Request) {
			if sent || req.Method != mcpjsonrpc.MethodToolsCall {
				return
			}
			sent = true
			r.tracker.Record(exectrace.KindInfo, mcpjsonrpc.MethodToolsCall+" "+name, ActorDispatcher, server, envelopeMetadata(req))
		},
	})

	result, err := r.caller.CallTool(ctx, name, args)
	if !sent && initialized {
		r.tracker.Record(exectrace.KindInfo, mcpjsonrpc.MethodToolsCall+" "+name, ActorDispatcher, server,
			map[string]interface{}{"method": mcpjsonrpc.MethodToolsCall, "params": map[string]interface{}{"name": name, "arguments": args}})
	}
	if err == nil {
		r.tracker.Record(exectrace.KindInfo, "dispatch "+name, server, tool, nil)
		r.tracker.Record(exectrace.KindInfo, name+" returned", tool, server, nil)
		r.tracker.Record(exectrace.KindInfo, "response envelope", server, ActorDispatcher,
			map[string]interface{}{"result": contentMetadata(result)})
		r.tracker.Record(exectrace.KindToolCallCompleted, result.Text(), ActorDispatcher, ActorDecisionMaker, nil)
		return result, nil
	}

	r.recordFailure(name, server, tool, err)
	r.logger.Warn("Traced tool call failed", slog.String("tool_name", name), slog.Any("error", err))
	return nil, err
}

func (r *TracedRun) recordFailure(name, server, tool string, err error) {
	var rpcErr *mcpjsonrpc.Error

	switch {
	case errors.Is(err, ErrTransportFailure):
		r.tracker.Record(exectrace.KindError, err.Error(), ActorDispatcher, server, nil)

	case errors.As(err, &rpcErr) && rpcErr.Code == mcpjsonrpc.CodeInternalError:
		// The request reached the tool, which failed.
		r.tracker.Record(exectrace.KindInfo, "dispatch "+name, server, tool, nil)
		r.tracker.Record(exectrace.KindError, rpcErr.Message, tool, server, nil)
		r.tracker.Record(exectrace.KindError, "error envelope", server, ActorDispatcher, errorMetadata(rpcErr))

	case errors.As(err, &rpcErr):
		// The server rejected the request before dispatching it.
		r.tracker.Record(exectrace.KindError, rpcErr.Message, server, ActorDispatcher, errorMetadata(rpcErr))

	default:
		// Local failure before anything was sent (e.g. uninitialized session).
	}

	r.tracker.Record(exectrace.KindError, err.Error(), ActorDispatcher, ActorDecisionMaker, nil)
}

// Finish records the run-end step, hands the snapshot to every sink and
// returns it. outcome is the task's final error, nil on success.
func (r *TracedRun) Finish(ctx context.Context, outcome error) ([]exectrace.Step, error) {
	meta := map[string]interface{}{"status": "completed"}
	content := "completed"
	if outcome != nil {
		meta["status"] = "failed"
		content = outcome.Error()
	}
	end := r.tracker.Record(exectrace.KindRunEnd, content, ActorDecisionMaker, ActorUser, meta)
	if !r.started.IsZero() {
		r.tracker.UpdateDuration(end, time.Since(r.started))
	}

	runID := r.tracker.RunID()
	steps := r.tracker.Snapshot()
	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Export(ctx, runID, steps); err != nil {
			r.logger.Error("Failed to export trace", slog.String("run_id", runID), slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	r.logger.Info("Run finished", slog.String("run_id", runID), slog.String("task", r.task), slog.Int("steps", len(steps)))
	return steps, errors.Join(errs...)
}

func contentMetadata(result *mcpjsonrpc.CallToolResult) []interface{} {
	blocks := make([]interface{}, 0, len(result.Content))
	for _, b := range result.Content {
		blocks = append(blocks, map[string]interface{}{"type": b.Type, "text": b.Text})
	}
	return blocks
}

// envelopeMetadata renders req as generic JSON so snapshots can deep-copy it.
func envelopeMetadata(req *mcpjsonrpc.Request) map[string]interface{} {
	var env map[string]interface{}
	raw, err := json.Marshal(req)
	if err == nil {
		err = json.Unmarshal(raw, &env)
	}
	if err != nil {
		return map[string]interface{}{"method": req.Method, "id": string(req.ID)}
	}
	return env
}

func errorMetadata(e *mcpjsonrpc.Error) map[string]interface{} {
	return map[string]interface{}{"code": e.Code, "message": e.Message}
}
