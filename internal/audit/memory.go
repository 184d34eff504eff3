package audit

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process audit logger used by tests and local tooling.
type Memory struct {
	mu      sync.Mutex
	entries []Entry

	// FailWith, when set, makes every Append return this error. Used to test
	// fail-closed behavior of privileged mutations.
	FailWith error
}

var _ Logger = (*Memory)(nil)

// NewMemory constructs an empty in-memory audit logger.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if err := Fill(e, time.Now); err != nil {
		return err
	}
	m.entries = append(m.entries, *e)
	return nil
}

// Entries returns a copy of everything appended so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Last returns the most recent entry with the given action, if any.
func (m *Memory) Last(action string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Action == action {
			return m.entries[i], true
		}
	}
	return Entry{}, false
}
