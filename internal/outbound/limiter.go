package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"telephony-gateway/internal/telephony"
	"telephony-gateway/pkg/utils"
)

// Limiter bounds concurrent provider operations per key.
type Limiter interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// SlotKey is the limiter key for sends through provider.
func SlotKey(provider telephony.ProviderName) string {
	return "telephony:send:" + string(provider)
}

// DefaultSlotTTL bounds how long a crashed sender can hold a slot.
const DefaultSlotTTL = 60 * time.Second

// RedisLimiter is a distributed Limiter backed by the Redis slot scripts in pkg/utils.
type RedisLimiter struct {
	rdb   redis.Scripter
	limit int
	ttl   time.Duration
}

func NewRedisLimiter(rdb redis.Scripter, limit int, ttl time.Duration) (*RedisLimiter, error) {
	if rdb == nil {
		return nil, utils.ErrNilRedis
	}
	if limit <= 0 {
		return nil, errors.New("outbound: limiter needs a positive limit")
	}
	if ttl <= 0 {
		ttl = DefaultSlotTTL
	}
	return &RedisLimiter{rdb: rdb, limit: limit, ttl: ttl}, nil
}

func (l *RedisLimiter) Acquire(ctx context.Context, key string) (bool, error) {
	return utils.AcquireSlot(ctx, l.rdb, key, l.limit, l.ttl)
}

func (l *RedisLimiter) Release(ctx context.Context, key string) error {
	return utils.ReleaseSlot(ctx, l.rdb, key)
}
