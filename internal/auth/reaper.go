package auth

import (
	"context"
	"time"

	"regelrecht.org/internal/obs"
)

// Purger removes records past their retention horizon. The portal store
// implements it; the reaper calls it on the same cadence as the session sweep.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Reaper periodically deletes expired sessions and stale rate-limit attempt
// records. Expiry is enforced at validation time regardless; the sweep only
// bounds table growth, so a missed run is harmless.
type Reaper struct {
	store    Store
	interval time.Duration
	horizon  time.Duration
	purger   Purger
	now      func() time.Time
}

// NewReaper constructs a Reaper. horizon is how far back attempt records are
// kept; it must cover the limiter window or the limiter undercounts.
func NewReaper(store Store, interval, horizon time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	if horizon < time.Hour {
		horizon = time.Hour
	}
	return &Reaper{
		store:    store,
		interval: interval,
		horizon:  horizon,
		now:      time.Now,
	}
}

// WithPurger attaches a retention purger that runs after each sweep.
func (r *Reaper) WithPurger(p Purger) *Reaper {
	r.purger = p
	return r
}

// Run sweeps once immediately and then on every interval tick until the
// context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	r.Sweep(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Errors are logged, not returned; the next tick
// retries.
func (r *Reaper) Sweep(ctx context.Context) {
	now := r.now().UTC()

	if n, err := r.store.AdminSessions(ctx).DeleteExpired(ctx, now); err != nil {
		obs.LogError("reaper admin sessions", err)
	} else if n > 0 {
		obs.ObserveReap("admin_sessions", n)
	}

	if n, err := r.store.UploaderSessions(ctx).DeleteExpired(ctx, now); err != nil {
		obs.LogError("reaper uploader sessions", err)
	} else if n > 0 {
		obs.ObserveReap("uploader_sessions", n)
	}

	if n, err := r.store.Attempts(ctx).DeleteOlderThan(ctx, now.Add(-r.horizon)); err != nil {
		obs.LogError("reaper auth attempts", err)
	} else if n > 0 {
		obs.ObserveReap("auth_rate_limit_attempts", n)
	}

	if r.purger != nil {
		if n, err := r.purger.PurgeExpired(ctx, now); err != nil {
			obs.LogError("reaper retention purge", err)
		} else if n > 0 {
			obs.ObserveReap("submissions", n)
		}
	}
}
