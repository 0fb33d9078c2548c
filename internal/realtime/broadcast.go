package realtime

import (
	"context"
	"sync"
)

const streamBuffer = 64

// Broadcaster fans one event feed out to many subscriptions.
type Broadcaster struct {
	mu      sync.RWMutex
	streams map[*stream]struct{}
	closed  bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{streams: make(map[*stream]struct{})}
}

var _ Source = (*Broadcaster)(nil)

// Subscribe opens a stream receiving the matching published events.
func (b *Broadcaster) Subscribe(ctx context.Context, sub Subscription) (Stream, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &stream{
		sub:    sub,
		events: make(chan Event, streamBuffer),
		done:   make(chan struct{}),
		owner:  b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.streams[s] = struct{}{}
	return s, nil
}

// Publish delivers e to every matching stream. It blocks while a matching
// stream's buffer is full, until that stream is closed.
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	targets := make([]*stream, 0, len(b.streams))
	for s := range b.streams {
		if s.sub.Matches(e) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.deliver(e)
	}
}

// Close ends every stream and rejects new subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	streams := b.streams
	b.streams = make(map[*stream]struct{})
	b.closed = true
	b.mu.Unlock()

	for s := range streams {
		s.shutdown()
	}
}

func (b *Broadcaster) remove(s *stream) {
	b.mu.Lock()
	delete(b.streams, s)
	b.mu.Unlock()
}

type stream struct {
	sub    Subscription
	events chan Event
	done   chan struct{}
	owner  *Broadcaster

	sendMu sync.Mutex
	once   sync.Once
}

func (s *stream) Events() <-chan Event {
	return s.events
}

func (s *stream) Close() error {
	s.owner.remove(s)
	s.shutdown()
	return nil
}

func (s *stream) deliver(e Event) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.events <- e:
	case <-s.done:
	}
}

// shutdown closes done first so a blocked deliver returns, then closes the
// events channel once no send is in flight.
func (s *stream) shutdown() {
	s.once.Do(func() {
		close(s.done)
		s.sendMu.Lock()
		close(s.events)
		s.sendMu.Unlock()
	})
}
