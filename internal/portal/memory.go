package portal

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local tooling.
type MemoryStore struct {
	mu          sync.Mutex
	submissions map[uuid.UUID]Submission
	documents   map[uuid.UUID]Document
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		submissions: make(map[uuid.UUID]Submission),
		documents:   make(map[uuid.UUID]Document),
	}
}

func (m *MemoryStore) Submissions(context.Context) SubmissionStore { return (*memSubmissions)(m) }
func (m *MemoryStore) Documents(context.Context) DocumentStore     { return (*memDocuments)(m) }

type memSubmissions MemoryStore

func (m *memSubmissions) Create(_ context.Context, s *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[s.ID] = *s
	return nil
}

func (m *memSubmissions) Find(_ context.Context, id uuid.UUID) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s
	return &out, nil
}

func (m *memSubmissions) FindBySlug(_ context.Context, slug string) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.submissions {
		if s.Slug == slug {
			out := s
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memSubmissions) Update(_ context.Context, s *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.submissions[s.ID]; !ok {
		return ErrNotFound
	}
	m.submissions[s.ID] = *s
	return nil
}

func (m *memSubmissions) UpdateStatus(_ context.Context, id uuid.UUID, from, to SubmissionStatus, submittedAt *time.Time, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = at
	if submittedAt != nil {
		s.SubmittedAt = submittedAt
	}
	m.submissions[id] = s
	return true, nil
}

func (m *memSubmissions) List(_ context.Context, f ListFilter) ([]Submission, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Submission
	for _, s := range m.submissions {
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		if f.Search != "" && !matchesSearch(&s, f.Search) {
			continue
		}
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if f.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func matchesSearch(s *Submission, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(s.Slug), term) ||
		strings.Contains(strings.ToLower(s.SubmitterName), term) ||
		strings.Contains(strings.ToLower(s.Organization), term)
}

func (m *memSubmissions) CountByStatus(context.Context) (map[SubmissionStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[SubmissionStatus]int)
	for _, s := range m.submissions {
		out[s.Status]++
	}
	return out, nil
}

func (m *memSubmissions) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.submissions {
		if s.RetentionExpiryDate.Before(now) {
			delete(m.submissions, id)
			for did, d := range m.documents {
				if d.SubmissionID == id {
					delete(m.documents, did)
				}
			}
			n++
		}
	}
	return n, nil
}

type memDocuments MemoryStore

func (m *memDocuments) Create(_ context.Context, d *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[d.ID] = *d
	return nil
}

func (m *memDocuments) Find(_ context.Context, id uuid.UUID) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := d
	return &out, nil
}

func (m *memDocuments) ListBySubmission(_ context.Context, submissionID uuid.UUID) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Document
	for _, d := range m.documents {
		if d.SubmissionID == submissionID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memDocuments) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[id]; !ok {
		return false, nil
	}
	delete(m.documents, id)
	return true, nil
}

func (m *memDocuments) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.documents), nil
}

// MemoryBlobStore keeps uploaded bodies in memory, for tests.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

var _ BlobStore = (*MemoryBlobStore)(nil)

// NewMemoryBlobStore constructs an empty MemoryBlobStore.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (b *MemoryBlobStore) Save(_ context.Context, name string, r io.Reader, limit int64) (string, int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return "", 0, err
	}
	if n > limit {
		return "", 0, ErrFileTooLarge
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[name] = buf.Bytes()
	return name, n, nil
}

func (b *MemoryBlobStore) Remove(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, path)
	return nil
}

// Len reports how many blobs are stored.
func (b *MemoryBlobStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}
