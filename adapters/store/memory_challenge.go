package store

import (
	"context"
	"sync"
	"time"

	"github.com/soulforge-labs/soulgate/core"
	"github.com/soulforge-labs/soulgate/ports"
)

type challengeEntry struct {
	challenge *core.Challenge
	deadline  time.Time
}

// MemoryChallengeStore is an in-memory implementation of the ChallengeStore
// interface. Expired entries stay visible until swept so lookups can
// distinguish an expired challenge from an unknown one.
type MemoryChallengeStore struct {
	mu        sync.RWMutex
	byID      map[string]challengeEntry
	byAddress map[string]map[string]struct{}
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		byID:      make(map[string]challengeEntry),
		byAddress: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryChallengeStore) Set(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[challenge.ID] = challengeEntry{
		challenge: challenge,
		deadline:  time.Now().Add(ttl),
	}

	ids, ok := s.byAddress[challenge.Address]
	if !ok {
		ids = make(map[string]struct{})
		s.byAddress[challenge.Address] = ids
	}
	ids[challenge.ID] = struct{}{}

	return nil
}

func (s *MemoryChallengeStore) Get(ctx context.Context, id string) (*core.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return entry.challenge, nil
}

func (s *MemoryChallengeStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(id), nil
}

func (s *MemoryChallengeStore) DeleteByAddress(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.byAddress[address] {
		s.remove(id)
	}
	return nil
}

func (s *MemoryChallengeStore) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	swept := 0
	for id, entry := range s.byID {
		if now.After(entry.deadline) {
			s.remove(id)
			swept++
		}
	}
	return swept, nil
}

func (s *MemoryChallengeStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// remove must be called with the write lock held. Reports whether the
// entry existed.
func (s *MemoryChallengeStore) remove(id string) bool {
	entry, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)

	ids := s.byAddress[entry.challenge.Address]
	delete(ids, id)
	if len(ids) == 0 {
		delete(s.byAddress, entry.challenge.Address)
	}
	return true
}
