package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulforge-labs/soulgate/core"
	"github.com/soulforge-labs/soulgate/ports"
)

func testChallenge(id, address string) *core.Challenge {
	now := time.Now()
	return &core.Challenge{
		ID:        id,
		Address:   address,
		Nonce:     "nonce-" + id,
		Message:   "message-" + id,
		IssuedAt:  now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
}

func TestChallengeStoreRoundTrip(t *testing.T) {
	s := NewMemoryChallengeStore()
	ctx := context.Background()

	c := testChallenge("c1", "0xaaaa")
	require.NoError(t, s.Set(ctx, c, time.Minute))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestChallengeStoreDelete(t *testing.T) {
	s := NewMemoryChallengeStore()
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

func TestChallengeStoreDeleteByAddress(t *testing.T) {
	s := NewMemoryChallengeStore()
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

func TestChallengeStoreSweep(t *testing.T) {
	s := NewMemoryChallengeStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, testChallenge("old", "0xaaaa"), time.Millisecond))
	require.NoError(t, s.Set(ctx, testChallenge("live", "0xbbbb"), time.Minute))

	time.Sleep(10 * time.Millisecond)

	swept, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
