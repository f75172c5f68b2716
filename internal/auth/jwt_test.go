package auth

import (
	"testing"
	"time"

	"gooms-backend/internal/config"
	"gooms-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars!!"

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: testSecret, TTL: time.Hour, Issuer: "gooms-test"}
}

func TestGenerateAndParseToken(t *testing.T) {
	user := &models.User{ID: 12, Email: "ops@example.com", Role: models.RoleProduction}

	token, claims, err := GenerateToken(testJWTConfig(), user)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, claims.ID)

	parsed, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, uint(12), parsed.UserID)
	assert.Equal(t, models.RoleProduction, parsed.Role)
	assert.Equal(t, "gooms-test", parsed.Issuer)
	assert.Equal(t, claims.ID, parsed.ID)
	assert.InDelta(t, time.Hour.Seconds(), parsed.remaining().Seconds(), 5)
}

func TestGenerateToken_UniqueJTI(t *testing.T) {
	user := &models.User{ID: 1, Role: models.RoleAdmin}
	_, a, err := GenerateToken(testJWTConfig(), user)
	require.NoError(t, err)
	_, b, err := GenerateToken(testJWTConfig(), user)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestParseToken_Rejects(t *testing.T) {
	user := &models.User{ID: 3, Role: models.RoleViewer}
	token, _, err := GenerateToken(testJWTConfig(), user)
	require.NoError(t, err)

	_, err = ParseToken("another-secret-that-is-long-enough!!", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken(testSecret, token+"x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expiredCfg := testJWTConfig()
	expiredCfg.TTL = -time.Minute
	expired, _, err := GenerateToken(expiredCfg, user)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
