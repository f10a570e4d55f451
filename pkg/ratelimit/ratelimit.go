// Package ratelimit implements a fixed-window request limiter with named
// limit tiers. Counters live behind a Store so single-node deployments can
// use the in-memory implementation while multi-instance deployments share
// windows through Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable is returned when the counter store cannot be reached.
// Callers decide the failure policy; the gateway fails open on it.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Config is one named limit tier: at most Limit requests per Window.
type Config struct {
	Limit  int
	Window time.Duration
}

// Result reports the outcome of a single admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store atomically increments the counter behind key and returns the new
// count. The first increment of a key must arm an expiry of ttl.
type Store interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type Limiter struct {
	store Store
	tiers map[string]Config
	now   func() time.Time
}

const DefaultTier = "default"

func New(store Store, tiers map[string]Config) *Limiter {
	return &Limiter{
		store: store,
		tiers: tiers,
		now:   time.Now,
	}
}

// Check admits or rejects one request for key under the named tier. The
// window is derived from wall time, so counters reset implicitly when the
// key rolls over to the next window. The increment that pushes the count
// past the limit is itself rejected.
func (l *Limiter) Check(ctx context.Context, tier, key string) (*Result, error) {
	cfg, ok := l.tiers[tier]
	if !ok {
		cfg = l.tiers[DefaultTier]
	}
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("rate limit tier %q not configured", tier)
	}

	now := l.now()
	windowStart := now.Truncate(cfg.Window)
	resetAt := windowStart.Add(cfg.Window)

	storeKey := fmt.Sprintf("ratelimit:%s:%s:%d", tier, key, windowStart.Unix())
	count, err := l.store.Incr(ctx, storeKey, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	remaining := int64(cfg.Limit) - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= int64(cfg.Limit),
		Limit:     cfg.Limit,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}, nil
}
