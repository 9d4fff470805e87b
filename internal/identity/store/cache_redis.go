package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"casekeeper/internal/identity/models"
	"casekeeper/internal/platform/metrics"
)

const userCacheKeyPrefix = "casekeeper:user:"

// UserFinder is the lookup the cache sits in front of.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RedisCache is a read-through cache of users. A short TTL bounds how long a
// block or approval change takes to reach this service. Redis failures fall
// through to the backing store.
type RedisCache struct {
	client  *redis.Client
	next    UserFinder
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRedisCache(client *redis.Client, next UserFinder, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, next: next, ttl: ttl, logger: logger, metrics: m}
}

func (c *RedisCache) FindByID(ctx context.Context, id string) (*models.User, error) {
	key := userCacheKeyPrefix + id
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var u models.User
		if jerr := json.Unmarshal(raw, &u); jerr == nil {
			c.metrics.IncPrincipalCache("hit")
			return &u, nil
		}
		c.logger.WarnContext(ctx, "discarding malformed cached user", "user_id", id)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "user cache read failed", "error", err)
	}
	c.metrics.IncPrincipalCache("miss")

	u, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payload, jerr := json.Marshal(u); jerr == nil {
		if serr := c.client.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			c.logger.WarnContext(ctx, "user cache write failed", "error", serr)
		}
	}
	return u, nil
}

// Invalidate drops a cached user.
func (c *RedisCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, userCacheKeyPrefix+id).Err()
}
