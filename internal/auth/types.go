package auth

import (
	"time"

	"github.com/google/uuid"
)

// AdminUser is a reviewer identity with password credentials.
type AdminUser struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	Active       bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// AdminSession is a persisted admin bearer session. Only the SHA-256 hash of
// the token is stored; the token itself is returned to the caller once.
type AdminSession struct {
	ID          uuid.UUID
	AdminUserID uuid.UUID
	TokenHash   string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	IPAddress   string
	UserAgent   string
}

// UploaderSession is a short-lived session bound to exactly one submission
// and the email used to authenticate. Same token-hash shape as AdminSession.
type UploaderSession struct {
	ID           uuid.UUID
	SubmissionID uuid.UUID
	Email        string
	TokenHash    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	IPAddress    string
	UserAgent    string
}

// Attempt is an append-only rate-limiting fact. Attempts are never updated,
// only inserted and later purged by age.
type Attempt struct {
	Address     string
	Endpoint    string
	AttemptedAt time.Time
}

// ClientMeta carries request metadata recorded for audit, not enforced as a
// binding.
type ClientMeta struct {
	Address   string
	UserAgent string
}

// SessionKind is the closed set of session flavors. A token validated under
// one kind is never accepted where the other is required.
type SessionKind string

const (
	KindAdmin    SessionKind = "admin"
	KindUploader SessionKind = "uploader"
)

// Session is the resolved, validated identity attached to a request.
// For KindUploader, SubmissionID names the single submission the session may
// touch. For KindAdmin, Admin holds the owning identity.
type Session struct {
	Kind         SessionKind
	ID           uuid.UUID
	AdminUserID  uuid.UUID
	Admin        *AdminUser
	SubmissionID uuid.UUID
	Email        string
	ExpiresAt    time.Time
}

// SubmissionRef is the minimal view of a submission the credential verifier
// needs: identity plus the email recorded at submission time.
type SubmissionRef struct {
	ID    uuid.UUID
	Slug  string
	Email string
}
