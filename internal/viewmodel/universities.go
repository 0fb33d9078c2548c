package viewmodel

import (
	"context"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"waselni/internal/domain"
	"waselni/internal/geo"
	"waselni/internal/repository"
	"waselni/internal/store"
)

// Universities caches the active universities. It is shared by every session.
type Universities struct {
	repo repository.UniversityRepository
	log  logrus.FieldLogger

	mu   sync.RWMutex
	list []domain.University
}

func NewUniversities(repo repository.UniversityRepository, log logrus.FieldLogger) *Universities {
	return &Universities{repo: repo, log: log.WithField("view", "universities")}
}

// Refresh reloads the active universities ordered by name.
func (u *Universities) Refresh(ctx context.Context) error {
	list, err := u.repo.ListActive(ctx)
	if err != nil {
		logRefreshFailure(u.log, store.Universities, err)
		return err
	}
	u.mu.Lock()
	u.list = list
	u.mu.Unlock()
	return nil
}

// invalidator is implemented by repositories that cache their results.
type invalidator interface {
	Invalidate(ctx context.Context) error
}

// Reload drops any repository-level cache and refreshes.
func (u *Universities) Reload(ctx context.Context) error {
	if inv, ok := u.repo.(invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			u.log.WithError(err).Warn("failed to invalidate university cache")
		}
	}
	return u.Refresh(ctx)
}

// All returns the cached universities.
func (u *Universities) All() []domain.University {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return append([]domain.University(nil), u.list...)
}

// Nearest returns the university closest to (lat, lon) and its distance in
// km. Equal distances resolve to the smallest id. ok is false when the
// cache is empty.
func (u *Universities) Nearest(lat, lon float64) (domain.University, float64, bool) {
	origin := geo.Point{Lat: lat, Lon: lon}

	u.mu.RLock()
	defer u.mu.RUnlock()

	var best domain.University
	bestDist := math.Inf(1)
	found := false
	for _, uni := range u.list {
		d := geo.Haversine(origin, uni.Point())
		if !found || d < bestDist || (d == bestDist && uni.ID < best.ID) {
			best, bestDist, found = uni, d, true
		}
	}
	if !found {
		return domain.University{}, 0, false
	}
	return best, bestDist, true
}
