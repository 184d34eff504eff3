package auth

import (
	"context"
	"time"

	"regelrecht.org/internal/obs"
)

// Limiter bounds authentication attempts per (client address, endpoint)
// inside a rolling window, backed by the durable attempt store. Two
// concurrent attempts at the threshold boundary may both pass; the bound is
// "approximately max per window", not exact.
type Limiter struct {
	store  Store
	max    int
	window time.Duration
	now    func() time.Time
}

// NewLimiter constructs a Limiter. max and window must be positive.
func NewLimiter(store Store, max int, window time.Duration) *Limiter {
	return &Limiter{store: store, max: max, window: window, now: time.Now}
}

// Window returns the rolling window; the reaper uses it as the purge horizon.
func (l *Limiter) Window() time.Duration { return l.window }

// RecordAndCheck inserts the attempt fact first and counts afterwards, so a
// blocked actor cannot reset the window by retrying. It returns
// ErrRateLimited when the count (including this attempt) exceeds the
// threshold.
func (l *Limiter) RecordAndCheck(ctx context.Context, address, endpoint string) error {
	attempts := l.store.Attempts(ctx)
	now := l.now().UTC()
	if err := attempts.Record(ctx, &Attempt{
		Address:     address,
		Endpoint:    endpoint,
		AttemptedAt: now,
	}); err != nil {
		return err
	}
	n, err := attempts.CountSince(ctx, address, endpoint, now.Add(-l.window))
	if err != nil {
		return err
	}
	if n > l.max {
		obs.ObserveRateLimitBlock(endpoint)
		return ErrRateLimited
	}
	return nil
}
