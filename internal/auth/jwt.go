// Package auth issues and verifies the bearer tokens clients present on every
// call, and hashes account passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/resonance/internal/normalize"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// defaultKID names the key when the manager is built from a single secret.
const defaultKID = "default"

// ErrUnknownKey is returned for tokens whose kid header is not in the keyring.
var ErrUnknownKey = errors.New("unknown signing key")

// JWTManager signs and validates JWT tokens used by the API. It holds a
// keyring so secrets can be rotated: new tokens are signed with the active
// kid, older tokens keep verifying while their kid stays configured.
type JWTManager struct {
	keys      map[string][]byte
	activeKID string
	duration  time.Duration
	now       func() time.Time
}

// Claims is the custom JWT payload (user id + email).
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// NewJWTManager returns a manager with a single HMAC secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return NewJWTManagerFromKeys(map[string]string{defaultKID: secretKey}, defaultKID, duration)
}

// NewJWTManagerFromKeys returns a manager with a kid -> secret keyring. An
// activeKID missing from keys leaves the manager able to verify but not sign.
func NewJWTManagerFromKeys(keys map[string]string, activeKID string, duration time.Duration) *JWTManager {
	ring := make(map[string][]byte, len(keys))
	for kid, secret := range keys {
		ring[kid] = []byte(secret)
	}
	return &JWTManager{keys: ring, activeKID: activeKID, duration: duration, now: time.Now}
}

// GenerateToken issues a signed JWT token for a user. The email claim is
// normalized so it compares equal to the stored account email.
func (m *JWTManager) GenerateToken(userID, email string) (string, time.Time, error) {
	secret, ok := m.keys[m.activeKID]
	if !ok {
		return "", time.Time{}, fmt.Errorf("active key %q: %w", m.activeKID, ErrUnknownKey)
	}

	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.duration)
	claims := &Claims{
		UserID: userID,
		Email:  normalize.Email(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = m.activeKID

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims. Tokens
// without a kid header are checked against the active key.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Only HMAC; rejects alg=none and asymmetric confusion.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			kid = m.activeKID
		}
		secret, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("kid %q: %w", kid, ErrUnknownKey)
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims returns a context carrying the caller's verified claims.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext extracts auth claims from the context, if present.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// UserID returns the authenticated user id in ctx, or "".
func UserID(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.UserID
	}
	return ""
}

// HashPassword returns a bcrypt hash for the provided plaintext.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
