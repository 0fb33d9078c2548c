package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"waselni/internal/config"
	"waselni/internal/realtime"
	"waselni/internal/store"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func TestNewBackend_Unconfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"no url", config.StoreConfig{}},
		{"rest without key", config.StoreConfig{URL: "https://xyz.supabase.co"}},
		{"unknown scheme", config.StoreConfig{URL: "ftp://example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(context.Background(), &config.Config{Store: tt.cfg}, nil, quietLogger())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer b.Close()

			if b.Kind != config.BackendNone {
				t.Errorf("expected no backend, got %q", b.Kind)
			}
			_, err = b.Client.List(context.Background(), store.Trips, store.NewQuery())
			if !errors.Is(err, store.ErrUnconfigured) {
				t.Errorf("expected ErrUnconfigured, got %v", err)
			}
			_, err = b.Source.Subscribe(context.Background(), realtime.Subscription{Collection: store.Trips})
			if !errors.Is(err, realtime.ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestNewBackend_Memory(t *testing.T) {
	t.Parallel()

	b, err := NewBackend(context.Background(), &config.Config{Store: config.StoreConfig{URL: "memory://"}}, nil, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Kind != config.BackendMemory {
		t.Fatalf("expected memory backend, got %q", b.Kind)
	}

	stream, err := b.Source.Subscribe(context.Background(), realtime.Subscription{Collection: store.Trips})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-stream.Events(); ok {
		t.Error("expected close to end open streams")
	}
}

func TestNewBackend_REST(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Store: config.StoreConfig{URL: "https://xyz.supabase.co", APIKey: "anon"}}
	b, err := NewBackend(context.Background(), cfg, nil, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Kind != config.BackendREST {
		t.Errorf("expected rest backend, got %q", b.Kind)
	}
	if b.Close() != nil {
		t.Error("expected nothing to close")
	}
}
