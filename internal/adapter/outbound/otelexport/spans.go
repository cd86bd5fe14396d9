// Package otelexport mirrors recorded runs and server-side tool calls into
// OpenTelemetry.
package otelexport

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/i2y/mcptrace/internal/exectrace"
)

// SpanSink replays a finished run as a root span with one child span per step.
// Steps keep their recorded timestamps, so the exported timeline matches the
// local one.
type SpanSink struct {
	tracer trace.Tracer
}

// NewSpanSink creates a sink that starts spans on tracer.
func NewSpanSink(tracer trace.Tracer) *SpanSink {
	return &SpanSink{tracer: tracer}
}

// Export implements usecase.TraceSink.
func (s *SpanSink) Export(ctx context.Context, runID string, steps []exectrace.Step) error {
	if len(steps) == 0 {
		return nil
	}

	first, last := steps[0], steps[len(steps)-1]
	runCtx, root := s.tracer.Start(ctx, "run:"+first.Content,
		trace.WithAttributes(attribute.String("mcptrace.run_id", runID)),
		trace.WithTimestamp(first.Timestamp),
	)

	failed := false
	for _, step := range steps {
		_, span := s.tracer.Start(runCtx, spanName(step),
			trace.WithAttributes(stepAttributes(runID, step)...),
			trace.WithTimestamp(step.Timestamp),
		)
		if step.Kind == exectrace.KindError {
			failed = true
			span.SetStatus(codes.Error, step.Content)
		}
		span.End(trace.WithTimestamp(stepEnd(step)))
	}

	if failed {
		root.SetStatus(codes.Error, "run recorded errors")
	} else {
		root.SetStatus(codes.Ok, "")
	}
	root.End(trace.WithTimestamp(last.Timestamp))
	return nil
}

func spanName(step exectrace.Step) string {
	if step.Target == "" {
		return fmt.Sprintf("%s:%s", step.Kind, step.Actor)
	}
	return fmt.Sprintf("%s:%s->%s", step.Kind, step.Actor, step.Target)
}

func stepAttributes(runID string, step exectrace.Step) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("mcptrace.run_id", runID),
		attribute.Int("mcptrace.step_id", step.ID),
		attribute.String("mcptrace.kind", string(step.Kind)),
		attribute.String("mcptrace.actor", step.Actor),
		attribute.String("mcptrace.content", step.Content),
	}
	if step.Target != "" {
		attrs = append(attrs, attribute.String("mcptrace.target", step.Target))
	}
	if step.DurationMS != nil {
		attrs = append(attrs, attribute.Int64("mcptrace.duration_ms", *step.DurationMS))
	}
	return attrs
}

// stepEnd is the step timestamp plus its duration. A run-end step carries the
// whole run's duration, so it ends where it was recorded.
func stepEnd(step exectrace.Step) time.Time {
	if step.Kind == exectrace.KindRunEnd {
		return step.Timestamp
	}
	if d, ok := step.Duration(); ok {
		return step.Timestamp.Add(d)
	}
	return step.Timestamp
}
