// Package session keeps one explicit context per signed-in user: display
// language, driver online flag and the per-user view models. Fleet and
// Universities are the only state shared between sessions.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"waselni/internal/domain"
	"waselni/internal/viewmodel"
)

// Session is the state of one signed-in user.
type Session struct {
	UserID string

	Trips        *viewmodel.Trips
	Reports      *viewmodel.Reports
	Profiles     *viewmodel.Profiles
	Fleet        *viewmodel.Fleet
	Universities *viewmodel.Universities

	log    logrus.FieldLogger
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
	start  sync.Once

	mu       sync.Mutex
	lang     domain.Language
	online   bool
	lastSeen time.Time
	closed   bool
}

// Language returns the display language.
func (s *Session) Language() domain.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// SetLanguage switches the display language.
func (s *Session) SetLanguage(lang domain.Language) {
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
}

// Online reports whether the user went online as a driver in this session.
func (s *Session) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// SetOnline records the driver online toggle.
func (s *Session) SetOnline(online bool) {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
}

// Context is cancelled when the session ends. Long-lived work such as
// streams should stop with it.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Touch marks the session as in use, keeping it from the idle sweep. Open
// streams call it as traffic flows.
func (s *Session) Touch() {
	s.touch(s.now())
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// open loads the per-user caches and subscribes to their changes. The
// passenger subscription starts before the trip refresh so no change falls
// between them; driver subscriptions follow once the refresh has found the
// user's driver records. Failures leave empty caches; the session stays
// usable.
func (s *Session) open(ctx context.Context) {
	s.start.Do(func() {
		if err := s.Trips.Activate(s.ctx); err != nil {
			s.log.WithError(err).Info("trip updates will not be live")
		}
		if err := s.Trips.Refresh(ctx); err != nil {
			s.log.WithError(err).Warn("initial trip refresh failed")
		} else if err := s.Trips.Activate(s.ctx); err != nil {
			s.log.WithError(err).Info("driver trip updates will not be live")
		}

		if err := s.Reports.Activate(s.ctx); err != nil {
			s.log.WithError(err).Info("report updates will not be live")
		}
		if err := s.Reports.Refresh(ctx); err != nil {
			s.log.WithError(err).Warn("initial report refresh failed")
		}
	})
}

// Close releases the subscriptions. In-flight requests finish against the
// deactivated view models.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.Trips.Deactivate()
	s.Reports.Deactivate()
	s.log.Debug("session closed")
}
