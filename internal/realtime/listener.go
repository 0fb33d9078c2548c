package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultRetryDelay is the first wait before resubscribing after a
	// stream ends. It doubles up to MaxRetryDelay.
	DefaultRetryDelay = time.Second
	MaxRetryDelay     = 30 * time.Second
)

// Handler receives the events of a listener, one at a time.
type Handler func(Event)

// Listener owns one subscription and the goroutine draining it. When the
// stream ends on its own the listener subscribes again and runs its resync
// hook, since events emitted in between are lost.
type Listener struct {
	source Source
	sub    Subscription
	log    logrus.FieldLogger
	retry  time.Duration
	resync func(context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewListener creates a stopped listener.
func NewListener(source Source, sub Subscription, log logrus.FieldLogger) *Listener {
	return &Listener{
		source: source,
		sub:    sub,
		log:    log.WithFields(logrus.Fields{"collection": sub.Collection, "filter": sub.Filter}),
		retry:  DefaultRetryDelay,
	}
}

// WithResync sets the function run after every resubscription. It must be
// called before Start.
func (l *Listener) WithResync(fn func(context.Context)) *Listener {
	l.resync = fn
	return l
}

// WithRetryDelay sets the first wait before resubscribing.
func (l *Listener) WithRetryDelay(d time.Duration) *Listener {
	if d > 0 {
		l.retry = d
	}
	return l
}

// Subscription returns the subscription the listener serves.
func (l *Listener) Subscription() Subscription {
	return l.sub
}

// Start subscribes and delivers matching events to h until Stop is called
// or ctx is cancelled.
func (l *Listener) Start(ctx context.Context, h Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done != nil {
		return ErrAlreadyStarted
	}

	stream, err := l.source.Subscribe(ctx, l.sub)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go l.run(runCtx, stream, h, done)

	l.log.Debug("realtime listener started")
	return nil
}

func (l *Listener) run(ctx context.Context, stream Stream, h Handler, done chan struct{}) {
	defer close(done)
	for {
		ended := l.drain(ctx, stream, h)
		if err := stream.Close(); err != nil {
			l.log.WithError(err).Warn("failed to close realtime stream")
		}
		if !ended {
			return
		}

		l.log.Warn("realtime stream ended; resubscribing")
		stream = l.resubscribe(ctx)
		if stream == nil {
			return
		}
		if l.resync != nil {
			l.resync(ctx)
		}
	}
}

// drain delivers events until the stream ends, reporting true, or ctx is
// done, reporting false.
func (l *Listener) drain(ctx context.Context, stream Stream, h Handler) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case e, ok := <-stream.Events():
			if !ok {
				return true
			}
			if !l.sub.Matches(e) {
				continue
			}
			h(e)
		}
	}
}

// resubscribe retries with doubling delays until it gets a stream, ctx ends
// or the source is gone for good.
func (l *Listener) resubscribe(ctx context.Context) Stream {
	delay := l.retry
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		stream, err := l.source.Subscribe(ctx, l.sub)
		if err == nil {
			l.log.Info("realtime listener resubscribed")
			return stream
		}
		if errors.Is(err, ErrClosed) || errors.Is(err, ErrUnavailable) || ctx.Err() != nil {
			l.log.WithError(err).Info("realtime listener gave up")
			return nil
		}
		l.log.WithError(err).WithField("retry_in", delay).Warn("realtime resubscribe failed")

		delay *= 2
		if delay > MaxRetryDelay {
			delay = MaxRetryDelay
		}
	}
}

// Stop unsubscribes and waits for the delivery goroutine to exit. It is safe
// to call more than once, and on a listener that never started.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if done == nil {
		return
	}

	cancel()
	<-done
	l.log.Debug("realtime listener stopped")
}

// Running reports whether the delivery goroutine is active.
func (l *Listener) Running() bool {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
