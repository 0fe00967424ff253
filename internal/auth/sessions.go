package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/veo1flow-25/teman-cors/internal/model"
)

// Sessions issues and verifies bearer tokens for the HTTP surface and keeps
// a revocable server-side registry in redis when one is configured. Without
// redis, tokens are stateless and only expiry revokes them.
type Sessions struct {
	secret []byte
	issuer string
	ttl    time.Duration
	redis  *redis.Client // nil disables the registry
}

func NewSessions(secret, issuer string, ttl time.Duration, redisClient *redis.Client) *Sessions {
	return &Sessions{secret: []byte(secret), issuer: issuer, ttl: ttl, redis: redisClient}
}

type Claims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

func sessionKey(email, id string) string {
	return fmt.Sprintf("session:%s:%s", email, id)
}

// Issue mints a signed token for user and registers the session.
func (s *Sessions) Issue(ctx context.Context, user model.UserProfile) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, sessionKey(user.Email, claims.ID), user.ID, s.ttl).Err(); err != nil {
			return "", err
		}
	}
	return token, nil
}

// Verify parses and validates a token. With a registry configured, a token
// whose session was terminated fails even before expiry.
func (s *Sessions) Verify(ctx context.Context, tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if s.redis != nil {
		exists, err := s.redis.Exists(ctx, sessionKey(claims.Email, claims.ID)).Result()
		if err != nil {
			return Claims{}, err
		}
		if exists == 0 {
			return Claims{}, errors.New("session terminated")
		}
	}
	return claims, nil
}

// Terminate revokes one session.
func (s *Sessions) Terminate(ctx context.Context, email, sessionID string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, sessionKey(email, sessionID)).Err()
}

// TerminateAll revokes every registered session for email. Called when an
// inactive profile authenticates or an admin deactivates an account.
func (s *Sessions) TerminateAll(ctx context.Context, email string) error {
	if s.redis == nil {
		return nil
	}
	keys, err := s.redis.Keys(ctx, sessionKey(email, "*")).Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.redis.Del(ctx, keys...).Err()
}
