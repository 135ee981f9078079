// Package authutils issues and verifies inter-service tokens.
package authutils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pinksync/internal/models"
)

// InterServiceVerifier signs and checks HS256 tokens shared between
// internal services. The token subject names the calling service.
type InterServiceVerifier struct {
	secret []byte
	issuer string
	logger *zap.Logger
}

func NewInterServiceVerifier(secret, issuer string, logger *zap.Logger) (*InterServiceVerifier, error) {
	if secret == "" {
		return nil, errors.New("inter-service secret cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterServiceVerifier{
		secret: []byte(secret),
		issuer: issuer,
		logger: logger.Named("InterServiceVerifier"),
	}, nil
}

// GenerateToken returns a token for serviceName valid for ttl.
func (v *InterServiceVerifier) GenerateToken(serviceName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    v.issuer,
		Subject:   serviceName,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyInterServiceToken returns the calling service name.
func (v *InterServiceVerifier) VerifyInterServiceToken(_ context.Context, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		v.logger.Warn("Inter-service token rejected", zap.String("tokenSnippet", tokenSnippet(tokenString)), zap.Error(err))
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", models.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", models.ErrTokenMalformed
		default:
			return "", fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
		}
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("%w: subject missing", models.ErrTokenInvalid)
	}
	return claims.Subject, nil
}

func tokenSnippet(tokenString string) string {
	const limit = 15
	if len(tokenString) > limit {
		return tokenString[:limit] + "..."
	}
	return tokenString
}
