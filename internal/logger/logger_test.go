package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"

	"waselni/internal/config"
)

func TestNew_LevelFallback(t *testing.T) {
	t.Parallel()

	l, err := New(config.LogConfig{Level: "verbose"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected info level, got %s", l.GetLevel())
	}

	l, err = New(config.LogConfig{Level: "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %s", l.GetLevel())
	}
}

func TestNew_JSONFormat(t *testing.T) {
	t.Parallel()

	l, err := New(config.LogConfig{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithField("collection", "trips").Warn("refresh failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
	if entry["message"] != "refresh failed" || entry["collection"] != "trips" {
		t.Errorf("unexpected entry %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	fallback := logrus.New()
	if FromContext(context.Background(), fallback) != fallback {
		t.Error("expected fallback without a stored logger")
	}

	entry := fallback.WithField("request_id", "r1")
	ctx := NewContext(context.Background(), entry)
	if FromContext(ctx, fallback) != entry {
		t.Error("expected stored logger")
	}
}
