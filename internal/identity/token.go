package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ServiceTokenSource mints short-lived HS256 tokens identifying this service
// to the first-party edge endpoint.
type ServiceTokenSource struct {
	secret []byte
	ttl    time.Duration
}

// NewServiceTokenSource creates a token source. TTL should stay short; a new
// token is minted for every lookup rather than cached.
func NewServiceTokenSource(secret string, ttl time.Duration) *ServiceTokenSource {
	return &ServiceTokenSource{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Token signs a fresh service token with a unique JTI.
func (s *ServiceTokenSource) Token() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   "authgate-identity-resolver",
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}

	return signed, nil
}
