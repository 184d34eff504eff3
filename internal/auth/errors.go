package auth

import "errors"

var (
	// ErrInvalidCredentials covers every credential failure: unknown
	// username, wrong password, inactive identity, unknown slug, mismatched
	// email. Deliberately generic to prevent enumeration.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrSessionInvalid is returned when a presented token resolves to no
	// stored session, or the owning identity no longer qualifies.
	ErrSessionInvalid = errors.New("auth: invalid session")

	// ErrSessionExpired is returned when the session exists but its absolute
	// expiry has passed. Validation never extends expiry.
	ErrSessionExpired = errors.New("auth: session expired")

	// ErrSessionWrongKind is returned when a valid token of one kind is
	// presented where the other kind is required.
	ErrSessionWrongKind = errors.New("auth: wrong session kind")

	// ErrRateLimited is returned when the rolling-window attempt count for
	// the client address exceeds the configured threshold.
	ErrRateLimited = errors.New("auth: rate limited")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
)
