package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBlacklist_Revoke(t *testing.T) {
	b := NewMemoryBlacklist()
	ctx := context.Background()

	require.NoError(t, b.Revoke(ctx, "jti-1", time.Hour))

	revoked, err := b.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = b.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryBlacklist_Expiry(t *testing.T) {
	b := NewMemoryBlacklist()
	ctx := context.Background()

	require.NoError(t, b.Revoke(ctx, "short", time.Millisecond))
	require.NoError(t, b.Revoke(ctx, "already-expired", 0))
	time.Sleep(5 * time.Millisecond)

	revoked, err := b.IsRevoked(ctx, "short")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = b.IsRevoked(ctx, "already-expired")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryBlacklist_RevokeUser(t *testing.T) {
	b := NewMemoryBlacklist()
	ctx := context.Background()
	issued := time.Now().Add(-time.Hour)

	revoked, err := b.IsUserRevoked(ctx, 5, issued)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, b.RevokeUser(ctx, 5, time.Hour))

	revoked, err = b.IsUserRevoked(ctx, 5, issued)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = b.IsUserRevoked(ctx, 5, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = b.IsUserRevoked(ctx, 6, issued)
	require.NoError(t, err)
	assert.False(t, revoked)
}
