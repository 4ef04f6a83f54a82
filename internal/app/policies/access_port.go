package policies

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRateLimited  = errors.New("ratelimit: too many requests")
	ErrInvalidToken = errors.New("auth: invalid or expired token")
)

// RateLimiter counts hits per key in a shared store so limits hold across
// instances.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Principal struct {
	ID    string
	Email string
	Name  string
	Roles []string
}

type TokenResolver interface {
	Resolve(ctx context.Context, token string) (Principal, error)
}
