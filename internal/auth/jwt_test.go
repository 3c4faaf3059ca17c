package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	pwd := "s3cr3t-password"
	hash, err := HashPassword(pwd)
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, pwd))
	assert.Error(t, CheckPassword(hash, "wrong"))
}

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	token, expiresAt, err := m.GenerateToken("u1", "test@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
}

func TestJWTManager_NormalizeEmailClaim(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	token, _, err := m.GenerateToken("u1", "  User.Case@Example.COM ")
	require.NoError(t, err)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user.case@example.com", claims.Email)
}

func TestJWTManager_Rotation(t *testing.T) {
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	m := NewJWTManagerFromKeys(keys, "k2", 5*time.Minute)

	tkn2, _, err := m.GenerateToken("u1", "rot@example.com")
	require.NoError(t, err)
	_, err = m.VerifyToken(tkn2)
	require.NoError(t, err)

	// A token issued while k1 was active still verifies after rotation.
	mOld := NewJWTManagerFromKeys(keys, "k1", 5*time.Minute)
	tkn1, _, err := mOld.GenerateToken("u1", "rot@example.com")
	require.NoError(t, err)
	_, err = m.VerifyToken(tkn1)
	require.NoError(t, err)

	// Retiring k1 invalidates its tokens.
	retired := NewJWTManagerFromKeys(map[string]string{"k2": "secret-two"}, "k2", 5*time.Minute)
	_, err = retired.VerifyToken(tkn1)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("other-secret", time.Minute)
		tkn, _, err := other.GenerateToken("u1", "a@b.c")
		require.NoError(t, err)
		_, err = m.VerifyToken(tkn)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		past := NewJWTManager("test-secret", time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tkn, _, err := past.GenerateToken("u1", "a@b.c")
		require.NoError(t, err)
		_, err = m.VerifyToken(tkn)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("alg none", func(t *testing.T) {
		tkn, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.VerifyToken(tkn)
		assert.Error(t, err)
	})

	t.Run("no user id", func(t *testing.T) {
		tkn, _, err := m.GenerateToken("", "a@b.c")
		require.NoError(t, err)
		_, err = m.VerifyToken(tkn)
		assert.Error(t, err)
	})

	t.Run("inactive signing key", func(t *testing.T) {
		broken := NewJWTManagerFromKeys(map[string]string{"k1": "x"}, "k9", time.Minute)
		_, _, err := broken.GenerateToken("u1", "a@b.c")
		assert.ErrorIs(t, err, ErrUnknownKey)
	})
}

func TestClaimsContext(t *testing.T) {
	ctx := context.Background()
	_, ok := ClaimsFromContext(ctx)
	assert.False(t, ok)
	assert.Empty(t, UserID(ctx))

	ctx = WithClaims(ctx, &Claims{UserID: "u7", Email: "u7@example.com"})
	c, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u7@example.com", c.Email)
	assert.Equal(t, "u7", UserID(ctx))
}
