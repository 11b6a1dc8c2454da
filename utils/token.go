package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/carelog/backend/cache"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// TokenManager issues and verifies HS256 session tokens. Issued token ids
// are tracked in Redis so logout revokes them before expiry.
type TokenManager struct {
	cache     *cache.Cache
	secretKey []byte
	ttl       time.Duration
}

// SessionClaims is the cached record per issued token.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func NewTokenManager(redisClient *redis.Client, secretKey string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		cache:     cache.NewCache(redisClient, "session:"),
		secretKey: []byte(secretKey),
		ttl:       ttl,
	}
}

// Issue creates a signed token for the user and caches its jti for the
// session lifetime.
func (m *TokenManager) Issue(ctx context.Context, userID, email, role string) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"iat":   now.Unix(),
		"exp":   now.Add(m.ttl).Unix(),
		"jti":   jti,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	session := SessionClaims{UserID: userID, Email: email, Role: role}
	if err := m.cache.Set(ctx, jti, session, m.ttl); err != nil {
		return "", errors.Wrap(err, "failed to cache session")
	}

	return signed, nil
}

// Verify parses and validates a token and confirms its session is still
// active in Redis.
func (m *TokenManager) Verify(ctx context.Context, tokenString string) (*SessionClaims, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to parse token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, "", errors.New("invalid token claims")
	}

	jti, ok := claims["jti"].(string)
	if !ok {
		return nil, "", errors.New("invalid token identifier")
	}

	var session SessionClaims
	if err := m.cache.Get(ctx, jti, &session); err != nil {
		return nil, "", errors.Wrap(err, "session not found")
	}

	return &session, jti, nil
}

// Revoke deletes the cached session so the token stops validating.
func (m *TokenManager) Revoke(ctx context.Context, jti string) error {
	return m.cache.Delete(ctx, jti)
}
