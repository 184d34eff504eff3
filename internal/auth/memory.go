package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local tooling. All
// methods are safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]AdminUser
	admin    map[string]AdminSession    // keyed by token hash
	uploader map[string]UploaderSession // keyed by token hash
	attempts []Attempt
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]AdminUser),
		admin:    make(map[string]AdminSession),
		uploader: make(map[string]UploaderSession),
	}
}

func (m *MemoryStore) AdminUsers(context.Context) AdminUserStore { return (*memAdminUsers)(m) }

func (m *MemoryStore) AdminSessions(context.Context) AdminSessionStore {
	return (*memAdminSessions)(m)
}

func (m *MemoryStore) UploaderSessions(context.Context) UploaderSessionStore {
	return (*memUploaderSessions)(m)
}

func (m *MemoryStore) Attempts(context.Context) AttemptStore { return (*memAttempts)(m) }

type memAdminUsers MemoryStore

func (m *memAdminUsers) Create(_ context.Context, u *AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return ErrAlreadyExists
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memAdminUsers) Find(_ context.Context, id uuid.UUID) (*AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := u
	return &out, nil
}

func (m *memAdminUsers) FindByUsername(_ context.Context, username string) (*AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memAdminUsers) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &at
	m.users[id] = u
	return nil
}

type memAdminSessions MemoryStore

func (m *memAdminSessions) Create(_ context.Context, s *AdminSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admin[s.TokenHash]; ok {
		return ErrAlreadyExists
	}
	m.admin[s.TokenHash] = *s
	return nil
}

func (m *memAdminSessions) FindByTokenHash(_ context.Context, hash string) (*AdminSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.admin[hash]
	if !ok {
		return nil, ErrNotFound
	}
	out := s
	return &out, nil
}

func (m *memAdminSessions) DeleteByTokenHash(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admin[hash]; !ok {
		return false, nil
	}
	delete(m.admin, hash)
	return true, nil
}

func (m *memAdminSessions) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, s := range m.admin {
		if !s.ExpiresAt.After(before) {
			delete(m.admin, hash)
			n++
		}
	}
	return n, nil
}

type memUploaderSessions MemoryStore

func (m *memUploaderSessions) Create(_ context.Context, s *UploaderSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploader[s.TokenHash]; ok {
		return ErrAlreadyExists
	}
	m.uploader[s.TokenHash] = *s
	return nil
}

func (m *memUploaderSessions) FindByTokenHash(_ context.Context, hash string) (*UploaderSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.uploader[hash]
	if !ok {
		return nil, ErrNotFound
	}
	out := s
	return &out, nil
}

func (m *memUploaderSessions) DeleteByTokenHash(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploader[hash]; !ok {
		return false, nil
	}
	delete(m.uploader, hash)
	return true, nil
}

func (m *memUploaderSessions) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, s := range m.uploader {
		if !s.ExpiresAt.After(before) {
			delete(m.uploader, hash)
			n++
		}
	}
	return n, nil
}

type memAttempts MemoryStore

func (m *memAttempts) Record(_ context.Context, a *Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, *a)
	return nil
}

func (m *memAttempts) CountSince(_ context.Context, address, endpoint string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.Address == address && a.Endpoint == endpoint && a.AttemptedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *memAttempts) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.attempts[:0]
	var n int64
	for _, a := range m.attempts {
		if a.AttemptedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	m.attempts = kept
	return n, nil
}
