package observability

import (
	"context"
	"testing"

	"github.com/yungbote/inkwell-backend/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

func TestInitTracing_DisabledReturnsUsableShutdown(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")

	shutdown := InitTracing(context.Background(), testLogger(t), TracingConfig{ServiceName: "inkwell-backend"})
	if shutdown == nil {
		t.Fatalf("expected a shutdown func even when tracing is disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown failed: %v", err)
	}
}

func TestInitTracing_EnabledWithoutEndpointUsesStdout(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SAMPLER_RATIO", "1")

	shutdown := InitTracing(context.Background(), testLogger(t), TracingConfig{ServiceName: "inkwell-backend"})
	if shutdown == nil {
		t.Fatalf("expected a shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestSamplerRatio_DefaultAndClamping(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"", 0.1},
		{"not-a-number", 0.1},
		{"0.5", 0.5},
		{"-3", 0},
		{"7", 1},
	}
	for _, tc := range cases {
		t.Setenv("OTEL_SAMPLER_RATIO", tc.raw)
		if got := samplerRatio(); got != tc.want {
			t.Fatalf("samplerRatio(%q): expected %v, got %v", tc.raw, tc.want, got)
		}
	}
}

func TestOTLPHeaders_ParsesPairsAndSkipsJunk(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=secret, malformed, =empty, team=platform")

	headers := otlpHeaders()
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %v", headers)
	}
	if headers["x-api-key"] != "secret" || headers["team"] != "platform" {
		t.Fatalf("unexpected headers %v", headers)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")
	if got := otlpHeaders(); got != nil {
		t.Fatalf("expected nil for empty env, got %v", got)
	}
}
