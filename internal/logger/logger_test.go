package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_WritesServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "futarchy-arb", func(context.Context) string { return "abc" })

	log.Info(context.Background(), "opportunity", "direction", "SPOT_SPLIT")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec["service"] != "futarchy-arb" {
		t.Errorf("service = %v, want futarchy-arb", rec["service"])
	}
	if rec["direction"] != "SPOT_SPLIT" {
		t.Errorf("direction = %v, want SPOT_SPLIT", rec["direction"])
	}
	if rec["trace_id"] != "abc" {
		t.Errorf("trace_id = %v, want abc", rec["trace_id"])
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "svc", nil)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("expected exactly one record, got %q", buf.String())
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "svc", nil).With("component", "oracle")

	log.Debug(context.Background(), "read")

	if !strings.Contains(buf.String(), `"component":"oracle"`) {
		t.Errorf("missing component field: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug": LevelDebug,
		"warn":  LevelWarn,
		"error": LevelError,
		"info":  LevelInfo,
		"":      LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
