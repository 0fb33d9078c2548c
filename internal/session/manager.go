package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"waselni/internal/domain"
	"waselni/internal/realtime"
	"waselni/internal/store"
	"waselni/internal/viewmodel"
)

var (
	// ErrClosed is returned after the manager has shut down.
	ErrClosed = errors.New("session manager closed")

	// ErrNotFound is returned when ending a session that does not exist.
	ErrNotFound = errors.New("session not found")
)

// DefaultIdleTimeout ends sessions without requests for this long.
const DefaultIdleTimeout = 30 * time.Minute

// Options tune a Manager.
type Options struct {
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	DefaultLanguage domain.Language
}

// Manager creates sessions on first use and ends them on sign-out, idle
// timeout or shutdown.
type Manager struct {
	client       store.Client
	source       realtime.Source
	fleet        *viewmodel.Fleet
	universities *viewmodel.Universities
	opts         Options
	log          logrus.FieldLogger
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a manager around the shared view models.
func NewManager(client store.Client, source realtime.Source, fleet *viewmodel.Fleet, universities *viewmodel.Universities, opts Options, log logrus.FieldLogger) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.IdleTimeout / 10
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = domain.LanguageEnglish
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		client:       client,
		source:       source,
		fleet:        fleet,
		universities: universities,
		opts:         opts,
		log:          log.WithField("component", "session"),
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
		sessions:     make(map[string]*Session),
	}
}

// Start loads the shared caches, subscribes the fleet ahead of its first
// load and starts the idle sweeper. Load failures are logged; the caches fill on the next refresh.
func (m *Manager) Start(ctx context.Context) {
	if err := m.universities.Refresh(ctx); err != nil {
		m.log.WithError(err).Warn("initial university refresh failed")
	}
	if err := m.fleet.Activate(m.ctx); err != nil {
		m.log.WithError(err).Info("fleet updates will not be live")
	}
	if err := m.fleet.Refresh(ctx); err != nil {
		m.log.WithError(err).Warn("initial fleet refresh failed")
	}

	m.wg.Add(1)
	go m.sweepLoop()
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.log.WithField("count", n).Info("ended idle sessions")
			}
		}
	}
}

// Get returns the session of userID, creating and opening it on first use.
// lang, when set, selects the language of a new session.
func (m *Manager) Get(ctx context.Context, userID string, lang domain.Language) (*Session, error) {
	if userID == "" {
		return nil, &store.ValidationError{Field: "user_id", Reason: viewmodel.ErrNoUser.Error()}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	s, ok := m.sessions[userID]
	if !ok {
		s = m.newSession(userID, lang)
		m.sessions[userID] = s
	}
	m.mu.Unlock()

	s.touch(m.now())
	s.open(ctx)
	return s, nil
}

func (m *Manager) newSession(userID string, lang domain.Language) *Session {
	if lang == "" {
		lang = m.opts.DefaultLanguage
	}
	log := m.log.WithField("user_id", userID)
	ctx, cancel := context.WithCancel(m.ctx)

	log.Debug("session created")
	return &Session{
		UserID:       userID,
		Trips:        viewmodel.NewTrips(userID, m.client, m.source, log),
		Reports:      viewmodel.NewReports(userID, m.client, m.source, log),
		Profiles:     viewmodel.NewProfiles(userID, m.client),
		Fleet:        m.fleet,
		Universities: m.universities,
		log:          log,
		now:          m.now,
		ctx:          ctx,
		cancel:       cancel,
		lang:         lang,
		lastSeen:     m.now(),
	}
}

// End closes the session of userID.
func (m *Manager) End(userID string) error {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// Sweep closes sessions idle for longer than the idle timeout and returns
// how many it closed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close ends every session and the shared subscriptions. It is safe to call
// more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()

	for _, s := range sessions {
		s.Close()
	}
	m.fleet.Deactivate()
	m.log.WithField("count", len(sessions)).Info("session manager closed")
}
