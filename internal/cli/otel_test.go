package cli

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/i2y/mcptrace/configs"
)

func TestInitOtelProvider(t *testing.T) {
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
	})
	logger := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	shutdown, enabled, err := initOtelProvider(ctx, &configs.Config{ServerName: "mcptrace"}, logger)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.NoError(t, shutdown(ctx))

	cfg := &configs.Config{
		ServerName:               "mcptrace",
		OtelExporterOtlpEndpoint: "127.0.0.1:1",
		OtelExporterOtlpInsecure: true,
	}
	shutdown, enabled, err = initOtelProvider(ctx, cfg, logger)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())

	// Nothing listens on the endpoint; only the teardown itself matters here.
	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = shutdown(shutdownCtx)
}
