package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a fixed-window limiter shared by every instance. Each window has
// its own key that expires with it.
type Redis struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: 0})
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	bucket := now.UnixNano() / int64(window)
	k := fmt.Sprintf("%sratelimit:%s:%d", r.Prefix, key, bucket)

	pipe := r.Client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
