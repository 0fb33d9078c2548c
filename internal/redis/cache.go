package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"waselni/internal/domain"
	"waselni/internal/repository"
)

// DefaultUniversityTTL bounds how stale the shared university list may be.
const DefaultUniversityTTL = 10 * time.Minute

const universitiesKey = "cache:universities:active"

// KV is the subset of the Redis client the cache uses.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ KV = (*redis.Client)(nil)

// UniversityCache serves the active university list from Redis, falling
// back to the wrapped repository on a miss or a Redis failure.
type UniversityCache struct {
	next   repository.UniversityRepository
	client KV
	ttl    time.Duration
	log    logrus.FieldLogger
}

var _ repository.UniversityRepository = (*UniversityCache)(nil)

// NewUniversityCache wraps next with a Redis cache.
func NewUniversityCache(next repository.UniversityRepository, client KV, ttl time.Duration, log logrus.FieldLogger) *UniversityCache {
	if ttl <= 0 {
		ttl = DefaultUniversityTTL
	}
	return &UniversityCache{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    log.WithField("cache", universitiesKey),
	}
}

// ListActive returns the cached list or loads and caches it.
func (c *UniversityCache) ListActive(ctx context.Context) ([]domain.University, error) {
	data, err := c.client.Get(ctx, universitiesKey).Bytes()
	switch {
	case err == nil:
		var list []domain.University
		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		c.log.Warn("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).Warn("cache read failed")
	}

	list, err := c.next.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return list, nil
	}
	if err := c.client.Set(ctx, universitiesKey, payload, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("cache write failed")
	}
	return list, nil
}

// Invalidate drops the cached list.
func (c *UniversityCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, universitiesKey).Err()
}
