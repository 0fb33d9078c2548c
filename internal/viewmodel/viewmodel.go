// Package viewmodel holds the per-screen state of a session: cached rows
// fed by explicit refreshes, write acknowledgments and realtime events.
//
// Caches are only mutated on a successful write or an inbound event. Reads
// that fail keep the last good cache. Conflicts between a write result and
// its realtime echo are settled by last-write-wins on updated_at.
package viewmodel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"waselni/internal/realtime"
	"waselni/internal/store"
)

// ErrNoUser is wrapped by validation failures of operations that need a
// signed-in user.
var ErrNoUser = errors.New("no authenticated user")

func requireUser(userID, field string) error {
	if userID == "" {
		return &store.ValidationError{Field: field, Reason: ErrNoUser.Error()}
	}
	return nil
}

// listeners owns a set of realtime listeners, at most one per subscription.
type listeners struct {
	// retry overrides the first resubscribe delay when positive.
	retry time.Duration

	mu   sync.Mutex
	list []*realtime.Listener
}

// start runs a listener for sub unless one is already running. Dropped
// streams are resubscribed and followed by resync.
func (l *listeners) start(ctx context.Context, source realtime.Source, sub realtime.Subscription, h realtime.Handler, resync func(context.Context), log logrus.FieldLogger) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, li := range l.list {
		if li.Subscription() == sub && li.Running() {
			return nil
		}
	}

	li := realtime.NewListener(source, sub, log).WithResync(resync).WithRetryDelay(l.retry)
	if err := li.Start(ctx, h); err != nil {
		return err
	}
	l.list = append(l.list, li)
	return nil
}

func (l *listeners) active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, li := range l.list {
		if li.Running() {
			return true
		}
	}
	return false
}

// stopAll stops every listener without holding the lock while waiting.
func (l *listeners) stopAll() {
	l.mu.Lock()
	list := l.list
	l.list = nil
	l.mu.Unlock()

	for _, li := range list {
		li.Stop()
	}
}

// resyncWith adapts a Refresh method to a listener resync hook.
func resyncWith(log logrus.FieldLogger, refresh func(context.Context) error) func(context.Context) {
	return func(ctx context.Context) {
		if err := refresh(ctx); err != nil {
			log.WithError(err).Warn("resync after resubscribe failed")
		}
	}
}

func logRefreshFailure(log logrus.FieldLogger, coll store.Collection, err error) {
	log.WithFields(logrus.Fields{"collection": coll, "error": err}).Warn("refresh failed; keeping cached rows")
}
