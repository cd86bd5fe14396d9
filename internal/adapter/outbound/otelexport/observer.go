package otelexport

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/i2y/mcptrace/internal/usecase"
)

// ToolObserver records server-side tool dispatches as metrics.
type ToolObserver struct {
	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

// NewToolObserver creates an observer bound to meter.
func NewToolObserver(meter metric.Meter) (*ToolObserver, error) {
	calls, err := meter.Int64Counter(
		"mcptrace.tool.calls",
		metric.WithDescription("Number of tools/call dispatches"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"mcptrace.tool.latency",
		metric.WithDescription("Tool dispatch latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &ToolObserver{calls: calls, latency: latency}, nil
}

// ObserveCall implements usecase.CallObserver.
func (o *ToolObserver) ObserveCall(ctx context.Context, obs usecase.CallObservation) {
	if o == nil {
		return
	}
	options := metric.WithAttributes(
		attribute.String("tool_name", obs.Tool),
		attribute.String("outcome", obs.Outcome),
	)
	o.calls.Add(ctx, 1, options)
	o.latency.Record(ctx, obs.Duration.Seconds(), options)
}
