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
	challengeKeyPrefix     = "soulgate:challenge:id:"
	challengeAddressPrefix = "soulgate:challenge:addr:"

	// expiredGrace keeps a challenge key alive past its logical expiry so a
	// lookup can still tell "expired" apart from "never existed". Reclamation
	// falls to the Redis TTL once the grace lapses.
	expiredGrace = time.Minute
)

// RedisChallengeStore is a Redis implementation of the ChallengeStore
// interface. Keys outlive the challenge's logical expiry by expiredGrace;
// callers check ExpiresAt on the record itself.
type RedisChallengeStore struct {
	client *redis.Client
}

// NewRedisChallengeStore creates a new Redis-backed challenge store.
func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

func (s *RedisChallengeStore) Set(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to encode challenge: %w", err)
	}

	addrKey := challengeAddressPrefix + challenge.Address

	pipe := s.client.Pipeline()
	pipe.Set(ctx, challengeKeyPrefix+challenge.ID, payload, ttl+expiredGrace)
	pipe.SAdd(ctx, addrKey, challenge.ID)
	pipe.Expire(ctx, addrKey, ttl+expiredGrace)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}

	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, id string) (*core.Challenge, error) {
	payload, err := s.client.Get(ctx, challengeKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	var challenge core.Challenge
	if err := json.Unmarshal(payload, &challenge); err != nil {
		return nil, fmt.Errorf("failed to decode challenge: %w", err)
	}

	return &challenge, nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, id string) (bool, error) {
	challenge, err := s.Get(ctx, id)
	if err != nil {
		if err == ports.ErrNotFound {
			return false, nil
		}
		return false, err
	}

	// DEL is the atomic decision point: of two racing deletes only one
	// observes a nonzero count.
	removed, err := s.client.Del(ctx, challengeKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete challenge: %w", err)
	}
	if removed == 0 {
		return false, nil
	}

	if err := s.client.SRem(ctx, challengeAddressPrefix+challenge.Address, id).Err(); err != nil {
		return true, fmt.Errorf("failed to unindex challenge: %w", err)
	}

	return true, nil
}

func (s *RedisChallengeStore) DeleteByAddress(ctx context.Context, address string) error {
	addrKey := challengeAddressPrefix + address

	ids, err := s.client.SMembers(ctx, addrKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list challenges for address: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, challengeKeyPrefix+id)
	}
	pipe.Del(ctx, addrKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete challenges for address: %w", err)
	}

	return nil
}

// SweepExpired is a no-op for Redis; keys expire via their TTLs.
func (s *RedisChallengeStore) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *RedisChallengeStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, challengeKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count challenges: %w", err)
	}
	return count, nil
}
