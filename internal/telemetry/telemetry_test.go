package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianly1003/aidev/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), config.TelemetryConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if p.Tracer == nil || p.Meter == nil {
		t.Fatal("disabled providers should still hand out a tracer and meter")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestInit_WritesTraces(t *testing.T) {
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	dir := t.TempDir()
	p, err := Init(context.Background(), config.TelemetryConfig{Enabled: true, Dir: dir}, "test")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, span := p.Tracer.Start(context.Background(), "GET /files/list")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "aidev_traces.log"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("trace file is empty after shutdown")
	}
}

func TestProviders_NilShutdown(t *testing.T) {
	var p *Providers
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown() error = %v", err)
	}
}
