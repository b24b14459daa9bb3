package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithContextAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, Config{Level: "debug", Format: "json"}))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithReviewID(WithRequestID(context.Background(), "req-1"), "rev-9")
	Info(ctx, "stage decided", "stage", "signals")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["request_id"] != "req-1" || entry["review_id"] != "rev-9" {
		t.Fatalf("expected ids in log entry, got %v", entry)
	}
	if entry["stage"] != "signals" {
		t.Fatalf("expected stage attribute, got %v", entry["stage"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Config{Level: "warn"})
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level")
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Fatalf("expected warn to be written")
	}
}
