package memory

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a fixed-window counter for single-instance deployments.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	Now     func() time.Time
}

type window struct {
	start time.Time
	hits  int
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string]window)}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, size time.Duration) (bool, error) {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.windows[key]
	if w.start.IsZero() || now.Sub(w.start) >= size {
		w = window{start: now}
	}
	w.hits++
	r.windows[key] = w
	return w.hits <= limit, nil
}
