package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soulforge-labs/soulgate/core"
	"github.com/soulforge-labs/soulgate/ports"
)

const (
	sessionKeyPrefix     = "soulgate:session:id:"
	sessionTokenPrefix   = "soulgate:session:token:"
	sessionRefreshPrefix = "soulgate:session:refresh:"
)

// RedisSessionStore is a Redis implementation of the SessionStore interface.
// Each session is stored once as JSON plus two index keys mapping the bearer
// and refresh credentials back to the session ID, all sharing the refresh TTL.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a new Redis-backed session store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Set(ctx context.Context, session *core.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, payload, ttl)
	pipe.Set(ctx, sessionTokenPrefix+session.Token, session.ID, ttl)
	pipe.Set(ctx, sessionRefreshPrefix+session.RefreshToken, session.ID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

func (s *RedisSessionStore) GetByToken(ctx context.Context, token string) (*core.Session, error) {
	return s.getByIndex(ctx, sessionTokenPrefix+token)
}

func (s *RedisSessionStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*core.Session, error) {
	return s.getByIndex(ctx, sessionRefreshPrefix+refreshToken)
}

func (s *RedisSessionStore) getByIndex(ctx context.Context, indexKey string) (*core.Session, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve session index: %w", err)
	}

	payload, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session core.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to load session: %w", err)
	}

	var session core.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return false, fmt.Errorf("failed to decode session: %w", err)
	}

	// DEL on the primary key is the atomic decision point; racing deletes
	// cannot both observe a nonzero count. Index keys are cleaned up after.
	removed, err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	if removed == 0 {
		return false, nil
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, sessionTokenPrefix+session.Token)
	pipe.Del(ctx, sessionRefreshPrefix+session.RefreshToken)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("failed to unindex session: %w", err)
	}

	return true, nil
}

// SweepExpired is a no-op for Redis; keys expire via their TTLs.
func (s *RedisSessionStore) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *RedisSessionStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}
