// Package telemetry wires OpenTelemetry tracing and metrics for outbound
// backend calls. When disabled, the global no-op providers are used.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brianly1003/aidev/internal/config"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// InstrumentationName names the tracer and meter used by aidev.
const InstrumentationName = "github.com/brianly1003/aidev"

// Providers bundles the tracer and meter handed to instrumented components.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	shutdown func(context.Context) error
}

// Noop returns providers backed by the current global (no-op by default)
// tracer and meter.
func Noop() *Providers {
	return &Providers{
		Tracer:   otel.Tracer(InstrumentationName),
		Meter:    otel.Meter(InstrumentationName),
		shutdown: func(context.Context) error { return nil },
	}
}

// Shutdown flushes pending spans and metrics and closes the export files.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Init sets up tracing and metrics from cfg. Traces and metrics are written
// as JSON into rotated files under cfg.Dir.
func Init(ctx context.Context, cfg config.TelemetryConfig, version string) (*Providers, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("aidev"),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	traceFile := rotatedFile(filepath.Join(cfg.Dir, "aidev_traces.log"))
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricsFile := rotatedFile(filepath.Join(cfg.Dir, "aidev_metrics.log"))
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsFile))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithInterval(10*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	log.Debug().Str("dir", cfg.Dir).Msg("telemetry enabled")

	return &Providers{
		Tracer: tp.Tracer(InstrumentationName),
		Meter:  mp.Meter(InstrumentationName),
		shutdown: func(ctx context.Context) error {
			var firstErr error
			if err := tp.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("failed to shutdown tracer provider")
				firstErr = err
			}
			if err := mp.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("failed to shutdown meter provider")
				if firstErr == nil {
					firstErr = err
				}
			}
			_ = traceFile.Close()
			_ = metricsFile.Close()
			return firstErr
		},
	}, nil
}

func rotatedFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // 10 MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}
