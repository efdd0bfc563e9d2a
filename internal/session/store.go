// Package session persists wizard sessions between requests.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"quote-wizard/internal/model"
)

// ErrNotFound is returned by Load for an unknown or expired id.
var ErrNotFound = errors.New("session not found")

// Store saves session snapshots keyed by session id.
type Store interface {
	Save(ctx context.Context, s *model.WizardSession) error
	Load(ctx context.Context, id string) (*model.WizardSession, error)
	Delete(ctx context.Context, id string) error
}

// Sweeper is implemented by stores that must drop expired sessions
// themselves. Redis expires keys on its own.
type Sweeper interface {
	Sweep() int
}

type memoryEntry struct {
	session *model.WizardSession
	expires time.Time
}

// MemoryStore keeps sessions in process. A zero ttl never expires.
type MemoryStore struct {
	ttl     time.Duration
	now     func() time.Time
	entries sync.Map
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, s *model.WizardSession) error {
	if s == nil || s.ID == "" {
		return errors.New("session without id")
	}
	e := memoryEntry{session: s.Clone()}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries.Store(s.ID, e)
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*model.WizardSession, error) {
	v, ok := m.entries.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	e := v.(memoryEntry)
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.entries.Delete(id)
		return nil, ErrNotFound
	}
	return e.session.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.entries.Delete(id)
	return nil
}

// Sweep drops every expired entry and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	now := m.now()
	n := 0
	m.entries.Range(func(k, v any) bool {
		if e := v.(memoryEntry); !e.expires.IsZero() && now.After(e.expires) {
			m.entries.Delete(k)
			n++
		}
		return true
	})
	return n
}

// Len returns the number of entries held, expired or not.
func (m *MemoryStore) Len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
