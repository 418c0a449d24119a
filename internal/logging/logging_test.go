package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != slog.Default() {
		t.Error("empty context should yield slog.Default()")
	}
	l := slog.New(slog.DiscardHandler)
	if FromContext(WithLogger(context.Background(), l)) != l {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestNewWithWriter_RedactsCredentials(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_SOURCE", "")

	var buf bytes.Buffer
	NewWithWriter(&buf).Debug("provider configured",
		slog.String("backend", "openai"),
		slog.String("api_key", "sk-live-123"),
		slog.String("Authorization", "Bearer abc"),
		slog.String("token", ""),
		slog.Group("catalog", slog.String("dsn", "postgres://u:pw@db/farm")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["service"] != Service || rec["backend"] != "openai" {
		t.Errorf("record = %v", rec)
	}
	for _, key := range []string{"api_key", "Authorization"} {
		if rec[key] != redacted {
			t.Errorf("%s = %v, want %q", key, rec[key], redacted)
		}
	}
	if rec["token"] != "" {
		t.Errorf("empty token = %v, want empty", rec["token"])
	}
	if group, _ := rec["catalog"].(map[string]any); group["dsn"] != redacted {
		t.Errorf("catalog.dsn = %v, want %q", group["dsn"], redacted)
	}
	if _, ok := rec[slog.SourceKey]; ok {
		t.Error("source added without LOG_SOURCE")
	}
	if strings.Contains(buf.String(), "sk-live-123") || strings.Contains(buf.String(), "pw@db") {
		t.Errorf("secret leaked: %s", buf.String())
	}
}

func TestNewWithWriter_LevelAndFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_SOURCE", "true")

	var buf bytes.Buffer
	log := NewWithWriter(&buf)
	log.Info("dropped")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info record written at LOG_LEVEL=warn: %q", out)
	}
	if !strings.Contains(out, "msg=kept") || !strings.Contains(out, "service=farmtable") {
		t.Errorf("text output = %q", out)
	}
	if !strings.Contains(out, "source=") {
		t.Errorf("LOG_SOURCE=true did not add source: %q", out)
	}
}
