package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/i2y/mcptrace/configs"
)

// initOtelProvider installs global Tracer and Meter providers exporting over
// OTLP/gRPC. It reports false, with a no-op shutdown, when no endpoint is
// configured.
func initOtelProvider(ctx context.Context, cfg *configs.Config, logger *slog.Logger) (func(context.Context) error, bool, error) {
	noop := func(context.Context) error { return nil }
	if cfg.OtelExporterOtlpEndpoint == "" {
		logger.Debug("MCPTRACE_OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry export disabled.")
		return noop, false, nil
	}

	creds := credentials.NewClientTLSFromCert(nil, "")
	if cfg.OtelExporterOtlpInsecure {
		creds = insecure.NewCredentials()
		logger.Warn("Using insecure connection for OTLP exporter.")
	}
	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String(cfg.ServerName)),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, false, fmt.Errorf("failed to create resource: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, false, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	logger.Info("OpenTelemetry providers configured.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx), conn.Close())
	}, true, nil
}
