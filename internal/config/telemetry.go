package config

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/xef5000/UltimateLogger/logstore/oteladapters"
)

const instrumentationName = "github.com/xef5000/UltimateLogger"

// Telemetry holds the OpenTelemetry providers and the logstore collectors built on them.
// A disabled Telemetry has nil collectors and a no-op Shutdown.
type Telemetry struct {
	MetricsCollector *oteladapters.MetricsCollector
	TracingCollector *oteladapters.TracingCollector

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
}

// Enabled reports whether telemetry is exported.
func (t *Telemetry) Enabled() bool {
	return t.tracerProvider != nil
}

// SetupTelemetry exports traces and metrics, and logs when ExportLogs is set, over OTLP/gRPC
// and installs the providers globally. An empty endpoint disables telemetry.
func SetupTelemetry(ctx context.Context, cfg TelemetryConfig) (*Telemetry, error) {
	if cfg.OTLPEndpoint == "" {
		return &Telemetry{}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)))
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter), sdktrace.WithResource(res))
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	t := &Telemetry{tracerProvider: tracerProvider, meterProvider: meterProvider}

	if cfg.ExportLogs {
		logExporter, logErr := otlploggrpc.New(ctx,
			otlploggrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlploggrpc.WithInsecure(),
		)
		if logErr != nil {
			return nil, logErr
		}

		t.loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(t.loggerProvider)
	}

	otel.SetTracerProvider(t.tracerProvider)
	otel.SetMeterProvider(t.meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.MetricsCollector = oteladapters.NewMetricsCollector(t.meterProvider.Meter(instrumentationName))
	t.TracingCollector = oteladapters.NewTracingCollector(t.tracerProvider.Tracer(instrumentationName))

	return t, nil
}

// ExportsLogs reports whether logs go to the OTLP endpoint through the slog bridge.
func (t *Telemetry) ExportsLogs() bool {
	return t.loggerProvider != nil
}

// Shutdown flushes and stops every provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}

	errs := []error{t.tracerProvider.Shutdown(ctx), t.meterProvider.Shutdown(ctx)}
	if t.loggerProvider != nil {
		errs = append(errs, t.loggerProvider.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
