package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestTracingConfigFromEnv(t *testing.T) {
	env := map[string]string{
		"ORRERY_TRACING_ENABLED":      "TRUE",
		"ORRERY_TRACING_EXPORTER":     "OTLP",
		"ORRERY_TRACING_SAMPLE_RATIO": "0.25",
		"ORRERY_OTLP_ENDPOINT":        "collector:4317",
	}
	getenv := func(k string) string { return env[k] }

	cfg := TracingConfigFromEnv(getenv)
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ServiceName != "orrery" {
		t.Fatalf("service name = %q, want orrery", cfg.ServiceName)
	}

	env["ORRERY_TRACING_SAMPLE_RATIO"] = "7"
	if got := TracingConfigFromEnv(getenv).SampleRatio; got != 1 {
		t.Fatalf("out-of-range ratio should fall back to 1, got %v", got)
	}
	if got := TracingConfigFromEnv(func(string) string { return "" }); got.Enabled || got.Exporter != "stdout" {
		t.Fatalf("empty environment = %+v", got)
	}
}

func TestSetupTracingDisabled(t *testing.T) {
	tr, err := SetupTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if tr.Enabled() {
		t.Fatalf("disabled config should not export")
	}
	tr.Shutdown(context.Background())
}

func TestSetupTracingStdoutWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tr, err := SetupTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "orrery-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Output:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = SetupTracing(context.Background(), TracingConfig{}, nil)
	})

	_, span := otel.Tracer("test").Start(context.Background(), "builder.Build")
	span.End()
	tr.Shutdown(context.Background())

	if !strings.Contains(buf.String(), "builder.Build") {
		t.Fatalf("expected span name in exporter output, got %q", buf.String())
	}
}

func TestSetupTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := SetupTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}
