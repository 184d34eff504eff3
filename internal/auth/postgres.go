package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGStore implements Store on Postgres via database/sql. Connections come
// from the shared pool; every call round-trips so multiple service instances
// see one consistent truth.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

// NewPGStore wraps an open connection pool.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) AdminUsers(context.Context) AdminUserStore { return (*pgAdminUsers)(s) }

func (s *PGStore) AdminSessions(context.Context) AdminSessionStore { return (*pgAdminSessions)(s) }

func (s *PGStore) UploaderSessions(context.Context) UploaderSessionStore {
	return (*pgUploaderSessions)(s)
}

func (s *PGStore) Attempts(context.Context) AttemptStore { return (*pgAttempts)(s) }

type pgAdminUsers PGStore

func (s *pgAdminUsers) Create(ctx context.Context, u *AdminUser) error {
	_, err := s.db.ExecContext(ctx,
		`insert into admin_users(id, username, email, password_hash, display_name, active, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.DisplayName, u.Active, u.CreatedAt,
	)
	return err
}

const adminUserCols = `id, username, email, password_hash, display_name, active, created_at, last_login_at`

func scanAdminUser(row *sql.Row) (*AdminUser, error) {
	var u AdminUser
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Active, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *pgAdminUsers) Find(ctx context.Context, id uuid.UUID) (*AdminUser, error) {
	return scanAdminUser(s.db.QueryRowContext(ctx,
		`select `+adminUserCols+` from admin_users where id = $1`, id))
}

func (s *pgAdminUsers) FindByUsername(ctx context.Context, username string) (*AdminUser, error) {
	return scanAdminUser(s.db.QueryRowContext(ctx,
		`select `+adminUserCols+` from admin_users where username = $1`, username))
}

func (s *pgAdminUsers) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update admin_users set last_login_at = $2 where id = $1`, id, at)
	return err
}

type pgAdminSessions PGStore

func (s *pgAdminSessions) Create(ctx context.Context, sess *AdminSession) error {
	_, err := s.db.ExecContext(ctx,
		`insert into admin_sessions(id, admin_user_id, token_hash, expires_at, created_at, ip_address, user_agent)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		sess.ID, sess.AdminUserID, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt, sess.IPAddress, sess.UserAgent,
	)
	return err
}

func (s *pgAdminSessions) FindByTokenHash(ctx context.Context, hash string) (*AdminSession, error) {
	var sess AdminSession
	err := s.db.QueryRowContext(ctx,
		`select id, admin_user_id, token_hash, expires_at, created_at, ip_address, user_agent
		 from admin_sessions where token_hash = $1`, hash,
	).Scan(&sess.ID, &sess.AdminUserID, &sess.TokenHash, &sess.ExpiresAt, &sess.CreatedAt, &sess.IPAddress, &sess.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *pgAdminSessions) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from admin_sessions where token_hash = $1`, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *pgAdminSessions) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from admin_sessions where expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type pgUploaderSessions PGStore

func (s *pgUploaderSessions) Create(ctx context.Context, sess *UploaderSession) error {
	_, err := s.db.ExecContext(ctx,
		`insert into uploader_sessions(id, submission_id, email, token_hash, expires_at, created_at, ip_address, user_agent)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		sess.ID, sess.SubmissionID, sess.Email, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt, sess.IPAddress, sess.UserAgent,
	)
	return err
}

func (s *pgUploaderSessions) FindByTokenHash(ctx context.Context, hash string) (*UploaderSession, error) {
	var sess UploaderSession
	err := s.db.QueryRowContext(ctx,
		`select id, submission_id, email, token_hash, expires_at, created_at, ip_address, user_agent
		 from uploader_sessions where token_hash = $1`, hash,
	).Scan(&sess.ID, &sess.SubmissionID, &sess.Email, &sess.TokenHash, &sess.ExpiresAt, &sess.CreatedAt, &sess.IPAddress, &sess.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *pgUploaderSessions) DeleteByTokenHash(ctx context.Context, hash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from uploader_sessions where token_hash = $1`, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *pgUploaderSessions) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from uploader_sessions where expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type pgAttempts PGStore

func (s *pgAttempts) Record(ctx context.Context, a *Attempt) error {
	_, err := s.db.ExecContext(ctx,
		`insert into auth_rate_limit_attempts(address, endpoint, attempted_at) values($1,$2,$3)`,
		a.Address, a.Endpoint, a.AttemptedAt,
	)
	return err
}

func (s *pgAttempts) CountSince(ctx context.Context, address, endpoint string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from auth_rate_limit_attempts
		 where address = $1 and endpoint = $2 and attempted_at > $3`,
		address, endpoint, since,
	).Scan(&n)
	return n, err
}

func (s *pgAttempts) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from auth_rate_limit_attempts where attempted_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
