package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulforge-labs/soulgate/core"
	"github.com/soulforge-labs/soulgate/ports"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestRedisChallengeStoreRoundTrip(t *testing.T) {
	s := NewRedisChallengeStore(setupRedis(t))
	ctx := context.Background()

	c := testChallenge("c1", "0xaaaa")
	require.NoError(t, s.Set(ctx, c, time.Minute))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.Address, got.Address)
	assert.Equal(t, c.Nonce, got.Nonce)
	assert.Equal(t, c.Message, got.Message)
	assert.WithinDuration(t, c.ExpiresAt, got.ExpiresAt, time.Second)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRedisChallengeStoreDelete(t *testing.T) {
	s := NewRedisChallengeStore(setupRedis(t))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, testChallenge("c1", "0xaaaa"), time.Minute))

	removed, err := s.Delete(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, removed)

	// Only the call that removed the record reports true.
	removed, err = s.Delete(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRedisChallengeStoreDeleteByAddress(t *testing.T) {
	s := NewRedisChallengeStore(setupRedis(t))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, testChallenge("c1", "0xaaaa"), time.Minute))
	require.NoError(t, s.Set(ctx, testChallenge("c2", "0xaaaa"), time.Minute))
	require.NoError(t, s.Set(ctx, testChallenge("c3", "0xbbbb"), time.Minute))

	require.NoError(t, s.DeleteByAddress(ctx, "0xaaaa"))

	_, err := s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ports.ErrNotFound)
	_, err = s.Get(ctx, "c2")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	_, err = s.Get(ctx, "c3")
	assert.NoError(t, err)
}

func TestRedisChallengeStoreKeepsExpiredVisible(t *testing.T) {
	s := NewRedisChallengeStore(setupRedis(t))
	ctx := context.Background()

	now := time.Now()
	c := &core.Challenge{
		ID:        "stale",
		Address:   "0xaaaa",
		Nonce:     "nonce-stale",
		Message:   "message-stale",
		IssuedAt:  now,
		ExpiresAt: now.Add(50 * time.Millisecond),
	}
	require.NoError(t, s.Set(ctx, c, 50*time.Millisecond))

	time.Sleep(100 * time.Millisecond)

	// Past its expiry the record is still readable within the grace window,
	// so a lookup distinguishes an expired challenge from an unknown one.
	got, err := s.Get(ctx, "stale")
	require.NoError(t, err)
	assert.True(t, got.Expired(time.Now()))
}
