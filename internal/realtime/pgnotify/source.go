// Package pgnotify turns PostgreSQL change notifications into realtime
// events. The change trigger installed by the postgres store publishes every
// row change on a single channel.
package pgnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"waselni/internal/realtime"
	"waselni/internal/store"
	"waselni/internal/store/postgres"
)

// Channel is the notification channel fed by the change trigger.
const Channel = postgres.ChangeChannel

const (
	minReconnect = 1 * time.Second
	maxReconnect = 30 * time.Second
)

// notifier is the part of *pq.Listener the source consumes.
type notifier interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

// Source listens on the change channel and fans events out to subscribers.
type Source struct {
	listener notifier
	hub      *realtime.Broadcaster
	log      logrus.FieldLogger

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

var _ realtime.Source = (*Source)(nil)

// NewSource opens a dedicated LISTEN connection to dsn.
func NewSource(dsn string, log logrus.FieldLogger) (*Source, error) {
	log = log.WithField("component", "realtime.pgnotify")
	l := pq.NewListener(dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			log.WithError(err).Warn("change listener connection lost")
		case pq.ListenerEventReconnected:
			log.Info("change listener reconnected; events during the gap are lost")
		}
	})
	return newSource(l, log)
}

func newSource(l notifier, log logrus.FieldLogger) (*Source, error) {
	if err := l.Listen(Channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("listen %s: %w", Channel, err)
	}

	s := &Source{
		listener: l,
		hub:      realtime.NewBroadcaster(),
		log:      log,
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

// Subscribe opens a stream of the matching changes.
func (s *Source) Subscribe(ctx context.Context, sub realtime.Subscription) (realtime.Stream, error) {
	return s.hub.Subscribe(ctx, sub)
}

func (s *Source) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-s.listener.NotificationChannel():
			if !ok {
				return
			}
			// A nil notification signals a reconnect.
			if n == nil {
				continue
			}
			e, err := decodeNotification(n.Extra)
			if err != nil {
				s.log.WithError(err).Warn("failed to decode change notification")
				continue
			}
			s.hub.Publish(e)
		}
	}
}

// Close stops listening and ends every open stream.
func (s *Source) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		s.hub.Close()
		err = s.listener.Close()
		s.wg.Wait()
	})
	return err
}

type notification struct {
	Table     string          `json:"table"`
	Type      string          `json:"type"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record"`
	Commit    time.Time       `json:"commit_timestamp"`
}

func decodeNotification(payload string) (realtime.Event, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return realtime.Event{}, err
	}

	e := realtime.Event{
		Kind:       realtime.Kind(n.Type),
		Collection: store.Collection(n.Table),
		CommitTime: n.Commit,
	}
	if len(n.Record) > 0 && string(n.Record) != "null" {
		e.New = n.Record
	}
	if len(n.OldRecord) > 0 && string(n.OldRecord) != "null" {
		e.Old = n.OldRecord
	}

	switch e.Kind {
	case realtime.KindInsert, realtime.KindUpdate, realtime.KindDelete:
	default:
		return realtime.Event{}, fmt.Errorf("unknown change type %q", n.Type)
	}
	return e, nil
}
