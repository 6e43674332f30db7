package store

import (
	"context"
	"sync"
	"time"

	"github.com/soulforge-labs/soulgate/core"
	"github.com/soulforge-labs/soulgate/ports"
)

// MemorySessionStore is an in-memory implementation of the SessionStore
// interface, indexing each session by both of its credentials.
type MemorySessionStore struct {
	mu        sync.RWMutex
	byID      map[string]*core.Session
	byToken   map[string]string // bearer token -> session ID
	byRefresh map[string]string // refresh token -> session ID
	deadlines map[string]time.Time
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byID:      make(map[string]*core.Session),
		byToken:   make(map[string]string),
		byRefresh: make(map[string]string),
		deadlines: make(map[string]time.Time),
	}
}

func (s *MemorySessionStore) Set(ctx context.Context, session *core.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[session.ID] = session
	s.byToken[session.Token] = session.ID
	s.byRefresh[session.RefreshToken] = session.ID
	s.deadlines[session.ID] = time.Now().Add(ttl)

	return nil
}

func (s *MemorySessionStore) GetByToken(ctx context.Context, token string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[token]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemorySessionStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRefresh[refreshToken]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(sessionID), nil
}

func (s *MemorySessionStore) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	swept := 0
	for id, deadline := range s.deadlines {
		if now.After(deadline) {
			s.remove(id)
			swept++
		}
	}
	return swept, nil
}

func (s *MemorySessionStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// remove must be called with the write lock held. Reports whether the
// session existed.
func (s *MemorySessionStore) remove(sessionID string) bool {
	session, ok := s.byID[sessionID]
	if !ok {
		return false
	}
	delete(s.byToken, session.Token)
	delete(s.byRefresh, session.RefreshToken)
	delete(s.byID, sessionID)
	delete(s.deadlines, sessionID)
	return true
}
