package auth

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

type countingPurger struct {
	calls atomic.Int64
}

func (p *countingPurger) PurgeExpired(context.Context, time.Time) (int64, error) {
	p.calls.Add(1)
	return 0, nil
}

func TestReaperSweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	seed := func(hash string, expires time.Time) {
		if err := store.AdminSessions(ctx).Create(ctx, &AdminSession{
			ID: uuid.New(), AdminUserID: uuid.New(), TokenHash: hash,
			ExpiresAt: expires, CreatedAt: base.Add(-time.Hour),
		}); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}
	seed("expired-1", base.Add(-time.Minute))
	seed("expired-2", base.Add(-8*time.Hour))
	seed("live-1", base.Add(time.Hour))

	if err := store.UploaderSessions(ctx).Create(ctx, &UploaderSession{
		ID: uuid.New(), SubmissionID: uuid.New(), Email: "a@example.org",
		TokenHash: "up-expired", ExpiresAt: base.Add(-time.Second), CreatedAt: base.Add(-5 * time.Hour),
	}); err != nil {
		t.Fatalf("seed uploader session: %v", err)
	}

	for _, at := range []time.Time{base.Add(-3 * time.Hour), base.Add(-10 * time.Minute)} {
		if err := store.Attempts(ctx).Record(ctx, &Attempt{Address: "203.0.113.1", Endpoint: EndpointAdminLogin, AttemptedAt: at}); err != nil {
			t.Fatalf("seed attempt: %v", err)
		}
	}

	r := NewReaper(store, time.Hour, time.Hour)
	r.now = func() time.Time { return base }
	r.Sweep(ctx)

	if _, err := store.AdminSessions(ctx).FindByTokenHash(ctx, "expired-1"); err != ErrNotFound {
		t.Fatalf("expired-1 still present: %v", err)
	}
	if _, err := store.AdminSessions(ctx).FindByTokenHash(ctx, "live-1"); err != nil {
		t.Fatalf("live session removed: %v", err)
	}
	if _, err := store.UploaderSessions(ctx).FindByTokenHash(ctx, "up-expired"); err != ErrNotFound {
		t.Fatalf("expired uploader session still present: %v", err)
	}
	n, err := store.Attempts(ctx).CountSince(ctx, "203.0.113.1", EndpointAdminLogin, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	if n != 1 {
		t.Fatalf("%d attempts remain, want 1 (only the one inside the horizon)", n)
	}
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore()
	r := NewReaper(store, 10*time.Millisecond, time.Hour).WithPurger(&countingPurger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after context cancellation")
	}
}

func TestReaperCallsPurger(t *testing.T) {
	store := NewMemoryStore()
	p := &countingPurger{}
	r := NewReaper(store, time.Hour, time.Hour).WithPurger(p)
	r.Sweep(context.Background())
	if p.calls.Load() != 1 {
		t.Fatalf("purger called %d times, want 1", p.calls.Load())
	}
}
