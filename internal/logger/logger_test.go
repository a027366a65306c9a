package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func decodeLastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := strings.Split(buf.String(), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &payload); err != nil {
			t.Fatalf("failed to decode log line: %v", err)
		}
		return payload
	}

	t.Fatal("no log lines found")
	return nil
}

func TestWithContextInjectsSpanIDs(t *testing.T) {
	var buf bytes.Buffer
	log := New("saga-dashboard", &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.WithContext(ctx).Info("saga fetched")

	payload := decodeLastLogLine(t, &buf)

	if payload["service"] != "saga-dashboard" {
		t.Fatalf("expected service to be injected, got %v", payload["service"])
	}
	if payload["traceID"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("expected traceID to be injected, got %v", payload["traceID"])
	}
	if payload["spanID"] != "00f067aa0ba902b7" {
		t.Fatalf("expected spanID to be injected, got %v", payload["spanID"])
	}
	if payload["timestamp"] == nil {
		t.Fatalf("expected timestamp to be injected")
	}
	if payload["message"] != "saga fetched" {
		t.Fatalf("expected message to match, got %v", payload["message"])
	}
}

func TestWithContextDefaultsToEmptyIDs(t *testing.T) {
	var buf bytes.Buffer
	log := New("saga-dashboard", &buf)

	log.WithContext(context.Background()).Debug("ping")

	payload := decodeLastLogLine(t, &buf)

	if payload["traceID"] != "" {
		t.Fatalf("expected empty traceID, got %v", payload["traceID"])
	}
	if payload["spanID"] != "" {
		t.Fatalf("expected empty spanID, got %v", payload["spanID"])
	}
	if payload["level"] != "debug" {
		t.Fatalf("expected level to be debug, got %v", payload["level"])
	}
}

func TestWithLevelFiltersEvents(t *testing.T) {
	var buf bytes.Buffer
	log := New("saga-dashboard", &buf).WithLevel("warn")

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}

	log.Warnf("kept", map[string]interface{}{"saga_id": "abc"})
	payload := decodeLastLogLine(t, &buf)
	if payload["level"] != "warn" {
		t.Fatalf("expected level warn, got %v", payload["level"])
	}
	if payload["saga_id"] != "abc" {
		t.Fatalf("expected saga_id field, got %v", payload["saga_id"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{" WARN ", "warn"},
		{"", "info"},
		{"verbose", "info"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in).String(); got != tt.want {
				t.Fatalf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithErrorAndField(t *testing.T) {
	var buf bytes.Buffer
	log := New("saga-dashboard", &buf)

	log.WithField("target", "payments").WithError(context.DeadlineExceeded).Error("request failed")

	payload := decodeLastLogLine(t, &buf)
	if payload["error"] != context.DeadlineExceeded.Error() {
		t.Fatalf("expected error field, got %v", payload["error"])
	}
	if payload["level"] != "error" {
		t.Fatalf("expected level error, got %v", payload["level"])
	}
}

func TestNewWithNilWriter(t *testing.T) {
	log := New("saga-dashboard", nil)
	if log == nil {
		t.Fatal("expected logger instance")
	}
}
