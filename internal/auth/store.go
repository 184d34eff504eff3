package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store describes persistence operations required by the auth subsystem.
// Every decision re-reads from the durable store; there is no process-local
// session or rate-limit cache.
type Store interface {
	AdminUsers(ctx context.Context) AdminUserStore
	AdminSessions(ctx context.Context) AdminSessionStore
	UploaderSessions(ctx context.Context) UploaderSessionStore
	Attempts(ctx context.Context) AttemptStore
}

// AdminUserStore manages admin identities.
type AdminUserStore interface {
	Create(ctx context.Context, u *AdminUser) error
	Find(ctx context.Context, id uuid.UUID) (*AdminUser, error)
	// FindByUsername is a case-sensitive exact match.
	FindByUsername(ctx context.Context, username string) (*AdminUser, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AdminSessionStore manages admin session records.
type AdminSessionStore interface {
	Create(ctx context.Context, s *AdminSession) error
	FindByTokenHash(ctx context.Context, hash string) (*AdminSession, error)
	DeleteByTokenHash(ctx context.Context, hash string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// UploaderSessionStore manages uploader session records.
type UploaderSessionStore interface {
	Create(ctx context.Context, s *UploaderSession) error
	FindByTokenHash(ctx context.Context, hash string) (*UploaderSession, error)
	DeleteByTokenHash(ctx context.Context, hash string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// AttemptStore manages rate-limit facts. Record and CountSince are separate
// calls on purpose: a blocked actor must still leave a recorded attempt so
// retrying cannot reset the window.
type AttemptStore interface {
	Record(ctx context.Context, a *Attempt) error
	CountSince(ctx context.Context, address, endpoint string, since time.Time) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SubmissionLookup resolves a slug to the submission data the uploader
// credential verifier needs. Implemented by the portal store; declared here
// so auth stays independent of the portal package.
type SubmissionLookup interface {
	SubmissionRefBySlug(ctx context.Context, slug string) (SubmissionRef, error)
}
