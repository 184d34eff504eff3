package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"regelrecht.org/internal/audit"
	"regelrecht.org/internal/obs"
)

const (
	defaultAdminTTL    = 8 * time.Hour
	defaultUploaderTTL = 4 * time.Hour

	// Rate-limit endpoint labels. They key the rolling window per endpoint so
	// admin and uploader login attempts are counted independently.
	EndpointAdminLogin    = "admin_login"
	EndpointUploaderLogin = "uploader_login"
)

// Service implements both credential schemes and the session store on top of
// a durable Store. It holds no per-request mutable state; concurrent service
// instances behave consistently without coordination.
type Service struct {
	store       Store
	submissions SubmissionLookup
	audit       audit.Logger
	limiter     *Limiter

	adminTTL    time.Duration
	uploaderTTL time.Duration
	now         func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAdminTTL configures admin session lifetime.
func WithAdminTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.adminTTL = ttl
		}
	}
}

// WithUploaderTTL configures uploader session lifetime.
func WithUploaderTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.uploaderTTL = ttl
		}
	}
}

// WithRateLimit overrides the default 10-per-hour login rate limit.
func WithRateLimit(max int, window time.Duration) ServiceOption {
	return func(s *Service) {
		if max > 0 && window > 0 {
			s.limiter = NewLimiter(s.store, max, window)
			s.limiter.now = s.now
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
			if s.limiter != nil {
				s.limiter.now = fn
			}
		}
	}
}

// NewService constructs the auth service with default TTLs and the
// compatibility default rate limit of 10 attempts per hour.
func NewService(store Store, submissions SubmissionLookup, auditLog audit.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:       store,
		submissions: submissions,
		audit:       auditLog,
		adminTTL:    defaultAdminTTL,
		uploaderTTL: defaultUploaderTTL,
		now:         time.Now,
	}
	s.limiter = NewLimiter(store, 10, time.Hour)
	for _, opt := range opts {
		opt(s)
	}
	s.limiter.now = s.now
	return s
}

// Limiter exposes the configured rate limiter; the reaper needs its window.
func (s *Service) Limiter() *Limiter { return s.limiter }

// AdminLogin verifies username and password and issues an admin session.
// The returned token is shown exactly once; only its hash is stored.
// Credential failures collapse to ErrInvalidCredentials regardless of cause.
func (s *Service) AdminLogin(ctx context.Context, username, password string, client ClientMeta) (string, *AdminSession, *AdminUser, error) {
	if err := s.limiter.RecordAndCheck(ctx, client.Address, EndpointAdminLogin); err != nil {
		if errors.Is(err, ErrRateLimited) {
			obs.ObserveLogin(string(KindAdmin), "rate_limited")
			s.auditDeny(ctx, "admin_login_rate_limited", "admin_user", "", audit.ActorSystem, "", client)
		}
		return "", nil, nil, err
	}

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		obs.ObserveLogin(string(KindAdmin), "invalid")
		return "", nil, nil, ErrInvalidCredentials
	}

	user, err := s.store.AdminUsers(ctx).FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.ObserveLogin(string(KindAdmin), "invalid")
			return "", nil, nil, ErrInvalidCredentials
		}
		return "", nil, nil, err
	}
	if !user.Active {
		obs.ObserveLogin(string(KindAdmin), "invalid")
		return "", nil, nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		obs.ObserveLogin(string(KindAdmin), "invalid")
		return "", nil, nil, ErrInvalidCredentials
	}

	token, err := NewToken()
	if err != nil {
		return "", nil, nil, err
	}
	now := s.now().UTC()
	sess := &AdminSession{
		ID:          uuid.New(),
		AdminUserID: user.ID,
		TokenHash:   HashToken(token),
		ExpiresAt:   now.Add(s.adminTTL),
		CreatedAt:   now,
		IPAddress:   client.Address,
		UserAgent:   truncate(client.UserAgent, 500),
	}
	if err := s.store.AdminSessions(ctx).Create(ctx, sess); err != nil {
		return "", nil, nil, err
	}
	if err := s.store.AdminUsers(ctx).TouchLastLogin(ctx, user.ID, now); err != nil {
		return "", nil, nil, err
	}

	// Issuing a session is a privileged mutation: fail closed if the audit
	// trail cannot record it.
	if err := s.audit.Append(ctx, &audit.Entry{
		Action:     "admin_login",
		EntityType: "admin_user",
		EntityID:   user.ID.String(),
		ActorType:  audit.ActorAdmin,
		ActorID:    user.ID.String(),
		ActorAddr:  client.Address,
	}); err != nil {
		_, _ = s.store.AdminSessions(ctx).DeleteByTokenHash(ctx, sess.TokenHash)
		return "", nil, nil, err
	}

	obs.ObserveLogin(string(KindAdmin), "ok")
	return token, sess, user, nil
}

// UploaderLogin verifies slug plus email and issues an uploader session
// bound to the matched submission. Possession of the slug and knowledge of
// the submission email constitute the credential; no password exists.
func (s *Service) UploaderLogin(ctx context.Context, slug, email string, client ClientMeta) (string, *UploaderSession, SubmissionRef, error) {
	if err := s.limiter.RecordAndCheck(ctx, client.Address, EndpointUploaderLogin); err != nil {
		if errors.Is(err, ErrRateLimited) {
			obs.ObserveLogin(string(KindUploader), "rate_limited")
			s.auditDeny(ctx, "uploader_login_rate_limited", "submission", "", audit.ActorSystem, "", client)
		}
		return "", nil, SubmissionRef{}, err
	}

	slug = strings.ToLower(strings.TrimSpace(slug))
	email = strings.TrimSpace(email)
	if slug == "" || email == "" {
		obs.ObserveLogin(string(KindUploader), "invalid")
		return "", nil, SubmissionRef{}, ErrInvalidCredentials
	}

	ref, err := s.submissions.SubmissionRefBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// A single generic failure whether the slug or the email was
			// wrong, so slug existence is not revealed.
			obs.ObserveLogin(string(KindUploader), "invalid")
			return "", nil, SubmissionRef{}, ErrInvalidCredentials
		}
		return "", nil, SubmissionRef{}, err
	}
	if ref.Email == "" || !strings.EqualFold(ref.Email, email) {
		obs.ObserveLogin(string(KindUploader), "invalid")
		return "", nil, SubmissionRef{}, ErrInvalidCredentials
	}

	token, err := NewToken()
	if err != nil {
		return "", nil, SubmissionRef{}, err
	}
	now := s.now().UTC()
	sess := &UploaderSession{
		ID:           uuid.New(),
		SubmissionID: ref.ID,
		Email:        strings.ToLower(email),
		TokenHash:    HashToken(token),
		ExpiresAt:    now.Add(s.uploaderTTL),
		CreatedAt:    now,
		IPAddress:    client.Address,
		UserAgent:    truncate(client.UserAgent, 500),
	}
	if err := s.store.UploaderSessions(ctx).Create(ctx, sess); err != nil {
		return "", nil, SubmissionRef{}, err
	}

	if err := s.audit.Append(ctx, &audit.Entry{
		Action:     "uploader_login",
		EntityType: "submission",
		EntityID:   ref.ID.String(),
		ActorType:  audit.ActorUploader,
		ActorAddr:  client.Address,
	}); err != nil {
		_, _ = s.store.UploaderSessions(ctx).DeleteByTokenHash(ctx, sess.TokenHash)
		return "", nil, SubmissionRef{}, err
	}

	obs.ObserveLogin(string(KindUploader), "ok")
	return token, sess, ref, nil
}

// ValidateAdmin resolves a presented token to an admin session. It returns
// ErrSessionExpired past the absolute expiry and ErrSessionInvalid when the
// hash is unknown or the owning identity has been deactivated since issuance.
// Validation never extends expiry.
func (s *Service) ValidateAdmin(ctx context.Context, token string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		return Session{}, ErrSessionInvalid
	}
	rec, err := s.store.AdminSessions(ctx).FindByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrSessionInvalid
		}
		return Session{}, err
	}
	if !s.now().UTC().Before(rec.ExpiresAt) {
		return Session{}, ErrSessionExpired
	}
	user, err := s.store.AdminUsers(ctx).Find(ctx, rec.AdminUserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrSessionInvalid
		}
		return Session{}, err
	}
	if !user.Active {
		return Session{}, ErrSessionInvalid
	}
	return Session{
		Kind:        KindAdmin,
		ID:          rec.ID,
		AdminUserID: user.ID,
		Admin:       user,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// ValidateUploader resolves a presented token to an uploader session bound
// to one submission.
func (s *Service) ValidateUploader(ctx context.Context, token string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		return Session{}, ErrSessionInvalid
	}
	rec, err := s.store.UploaderSessions(ctx).FindByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrSessionInvalid
		}
		return Session{}, err
	}
	if !s.now().UTC().Before(rec.ExpiresAt) {
		return Session{}, ErrSessionExpired
	}
	return Session{
		Kind:         KindUploader,
		ID:           rec.ID,
		SubmissionID: rec.SubmissionID,
		Email:        rec.Email,
		ExpiresAt:    rec.ExpiresAt,
	}, nil
}

// LogoutAdmin revokes the session behind the token. Revoking a session that
// is already gone is not an error.
func (s *Service) LogoutAdmin(ctx context.Context, token string, client ClientMeta) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	hash := HashToken(token)
	rec, err := s.store.AdminSessions(ctx).FindByTokenHash(ctx, hash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	deleted, derr := s.store.AdminSessions(ctx).DeleteByTokenHash(ctx, hash)
	if derr != nil {
		return derr
	}
	if deleted && rec != nil {
		if aerr := s.audit.Append(ctx, &audit.Entry{
			Action:     "admin_logout",
			EntityType: "admin_user",
			EntityID:   rec.AdminUserID.String(),
			ActorType:  audit.ActorAdmin,
			ActorID:    rec.AdminUserID.String(),
			ActorAddr:  client.Address,
		}); aerr != nil {
			// The session is gone either way; logout stays idempotent.
			audit.Warn("admin_logout", aerr)
		}
	}
	return nil
}

// LogoutUploader revokes an uploader session; idempotent like LogoutAdmin.
func (s *Service) LogoutUploader(ctx context.Context, token string, client ClientMeta) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	hash := HashToken(token)
	rec, err := s.store.UploaderSessions(ctx).FindByTokenHash(ctx, hash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	deleted, derr := s.store.UploaderSessions(ctx).DeleteByTokenHash(ctx, hash)
	if derr != nil {
		return derr
	}
	if deleted && rec != nil {
		if aerr := s.audit.Append(ctx, &audit.Entry{
			Action:     "uploader_logout",
			EntityType: "submission",
			EntityID:   rec.SubmissionID.String(),
			ActorType:  audit.ActorUploader,
			ActorAddr:  client.Address,
		}); aerr != nil {
			audit.Warn("uploader_logout", aerr)
		}
	}
	return nil
}

// CreateAdminUser hashes the password and stores a new admin identity.
// Used by the adminctl bootstrap tool, not exposed over HTTP.
func (s *Service) CreateAdminUser(ctx context.Context, username, email, password, displayName string) (*AdminUser, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" {
		return nil, errors.New("auth: username and email are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &AdminUser{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.AdminUsers(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.audit.Append(ctx, &audit.Entry{
		Action:     "admin_user_created",
		EntityType: "admin_user",
		EntityID:   user.ID.String(),
		ActorType:  audit.ActorSystem,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// auditDeny records a denied decision; deny paths degrade audit failures to
// a warning because refusing the action is already the outcome.
func (s *Service) auditDeny(ctx context.Context, action, entityType, entityID string, actor audit.ActorType, actorID string, client ClientMeta) {
	if err := s.audit.Append(ctx, &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorType:  actor,
		ActorID:    actorID,
		ActorAddr:  client.Address,
	}); err != nil {
		audit.Warn(action, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
