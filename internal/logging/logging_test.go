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
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	log := NewWithWriter(&buf)
	log.Info("dropped")
	log.Warn("kept", slog.String("file", "manual.pdf"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["file"] != "manual.pdf" {
		t.Errorf("record: got %v", rec)
	}
}

func TestNewWithWriter_TextDefault(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_LEVEL", "")

	var buf bytes.Buffer
	NewWithWriter(&buf).Info("hello", slog.Int("chunks", 3))
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "chunks=3") {
		t.Errorf("unexpected text output: %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != slog.Default() {
		t.Error("empty context should yield slog.Default")
	}
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if FromContext(WithLogger(context.Background(), l)) != l {
		t.Error("logger not carried by context")
	}
}
