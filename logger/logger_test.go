package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func newJSONLogger(level string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := &Config{Level: level, Format: "json"}
	return NewWithWriter(cfg, "test", &buf), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid json log line %q: %v", line, err)
	}
	return m
}

func TestNewWithWriter_JSON(t *testing.T) {
	l, buf := newJSONLogger("info")
	l.Info("hello", Fields("status", 200))

	m := decodeLine(t, buf)
	if m["message"] != "hello" {
		t.Errorf("message = %v", m["message"])
	}
	if m["service"] != "test" {
		t.Errorf("service = %v", m["service"])
	}
	if m["status"] != float64(200) {
		t.Errorf("status = %v", m["status"])
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newJSONLogger("warn")
	l.Info("hidden")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected warn output")
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	l, buf := newJSONLogger("nonsense")
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWithComponentAndFields(t *testing.T) {
	l, buf := newJSONLogger("info")
	l.WithComponent("httpclient").WithFields(Fields("attempt", 2)).WithError(errors.New("boom")).Error("failed")

	m := decodeLine(t, buf)
	if m[FieldComponent] != "httpclient" {
		t.Errorf("component = %v", m[FieldComponent])
	}
	if m["attempt"] != float64(2) {
		t.Errorf("attempt = %v", m["attempt"])
	}
	if m["error"] != "boom" {
		t.Errorf("error = %v", m["error"])
	}
}

func TestWithContext_RequestAndTraceIDs(t *testing.T) {
	l, buf := newJSONLogger("info")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithRequestID(ctx, "req-1")

	l.WithContext(ctx).Info("traced")

	m := decodeLine(t, buf)
	if m[FieldRequestID] != "req-1" {
		t.Errorf("request_id = %v", m[FieldRequestID])
	}
	if m[FieldTraceID] != traceID.String() {
		t.Errorf("trace_id = %v", m[FieldTraceID])
	}
	if m[FieldSpanID] != spanID.String() {
		t.Errorf("span_id = %v", m[FieldSpanID])
	}
}

func TestWithContext_Empty(t *testing.T) {
	l, buf := newJSONLogger("info")
	l.WithContext(context.Background()).Info("plain")
	m := decodeLine(t, buf)
	if _, ok := m[FieldRequestID]; ok {
		t.Error("unexpected request_id")
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "console", NoColor: true}, "snow", &buf)
	l.Info("console line")
	out := buf.String()
	if !strings.Contains(out, "[snow][INF]") || !strings.Contains(out, "console line") {
		t.Errorf("unexpected console output %q", out)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	l.WithComponent("x").Error("nothing")
}

func TestGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	l, buf := newJSONLogger("info")
	SetGlobalLogger(l)
	Info("global")
	if !strings.Contains(buf.String(), "global") {
		t.Error("expected package-level Info to use the global logger")
	}
}

func TestConfig_ApplyDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stderr" || !cfg.Timestamp {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid level error")
	}
	cfg.Level = "info"
	cfg.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid format error")
	}
}

func TestFieldHelpers(t *testing.T) {
	f := Fields("a", 1, "b")
	if len(f) != 1 || f["a"] != 1 {
		t.Errorf("Fields = %v", f)
	}
	if ErrorFields(errors.New("x"))[FieldError] != "x" {
		t.Error("ErrorFields mismatch")
	}
	if DurationFields(1500*time.Millisecond)[FieldDuration] != int64(1500) {
		t.Error("DurationFields mismatch")
	}
}
