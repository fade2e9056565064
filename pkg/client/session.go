package client

import (
	"context"
	"sync"
	"time"
)

// User is the account summary the server returns.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the cached (token, user) pair.
type Session struct {
	Token   string
	User    User
	SavedAt time.Time
}

// SessionStore persists the last issued session. Load returns (nil, nil)
// when nothing is cached. Save replaces the whole pair at once.
//
// CompareAndSwap replaces the cached session with next, or clears it when
// next is nil, only while the cached token still equals token. It reports
// whether the swap happened. Responses to requests sent with an older token
// go through it so they cannot overwrite a logout or a newer login.
type SessionStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
	CompareAndSwap(ctx context.Context, token string, next *Session) (bool, error)
}

// MemorySessionStore keeps the session in process memory.
type MemorySessionStore struct {
	mu sync.RWMutex
	s  *Session
}

func NewMemorySessionStore() *MemorySessionStore { return &MemorySessionStore{} }

func (m *MemorySessionStore) Load(context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.s == nil {
		return nil, nil
	}
	cp := *m.s
	return &cp, nil
}

func (m *MemorySessionStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = &s
	return nil
}

func (m *MemorySessionStore) CompareAndSwap(_ context.Context, token string, next *Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil || m.s.Token != token {
		return false, nil
	}
	if next == nil {
		m.s = nil
		return true, nil
	}
	cp := *next
	m.s = &cp
	return true, nil
}

func (m *MemorySessionStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}
