package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"waselni/internal/config"
	"waselni/internal/realtime"
	"waselni/internal/realtime/pgnotify"
	"waselni/internal/realtime/phoenix"
	"waselni/internal/store"
	"waselni/internal/store/memory"
	"waselni/internal/store/postgres"
	"waselni/internal/store/rest"
)

// Backend is the record store and realtime source selected by STORE_URL.
type Backend struct {
	Kind   config.Backend
	Client store.Client
	Source realtime.Source

	closers []func() error
}

// Close releases the backend connections in reverse order of creation.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// NewBackend builds the store client and realtime source. A missing or
// unsupported configuration yields an unconfigured store whose every call
// fails, so the process still starts and serves its static endpoints.
func NewBackend(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application, log logrus.FieldLogger) (*Backend, error) {
	kind, reason := cfg.Store.Backend()
	log = log.WithField("backend", kind)

	switch kind {
	case config.BackendREST:
		src, err := phoenix.NewSource(phoenix.Config{
			BaseURL:           cfg.Store.URL,
			APIKey:            cfg.Store.APIKey,
			HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
			JoinTimeout:       cfg.Realtime.JoinTimeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to configure realtime: %w", err)
		}
		log.Info("using REST record store")
		return &Backend{
			Kind:   kind,
			Client: rest.New(cfg.Store.URL, cfg.Store.APIKey, cfg.Store.Timeout),
			Source: src,
		}, nil

	case config.BackendPostgres:
		db, err := NewDatabase(ctx, cfg.Store.URL, cfg.Database, nrApp)
		if err != nil {
			return nil, err
		}
		if cfg.Store.EnsureSchema {
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to ensure schema: %w", err)
			}
			log.Info("database schema ensured")
		}
		src, err := pgnotify.NewSource(cfg.Store.URL, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to listen for changes: %w", err)
		}
		log.Info("using PostgreSQL record store")
		return &Backend{
			Kind:    kind,
			Client:  postgres.New(db),
			Source:  src,
			closers: []func() error{db.Close, src.Close},
		}, nil

	case config.BackendMemory:
		mem := memory.New()
		log.Warn("using in-memory record store; data is lost on restart")
		return &Backend{
			Kind:    kind,
			Client:  mem,
			Source:  mem,
			closers: []func() error{mem.Close},
		}, nil
	}

	log.WithField("reason", reason).Warn("record store not configured; requests touching data will fail")
	return &Backend{
		Kind:   config.BackendNone,
		Client: store.Unconfigured{Reason: reason},
		Source: realtime.Unavailable{},
	}, nil
}
