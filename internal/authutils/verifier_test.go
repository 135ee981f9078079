package authutils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pinksync/internal/models"
)

func newVerifier(t *testing.T, secret string) *InterServiceVerifier {
	t.Helper()
	v, err := NewInterServiceVerifier(secret, "pinksync", zap.NewNop())
	require.NoError(t, err)
	return v
}

func TestNewInterServiceVerifier_EmptySecret(t *testing.T) {
	_, err := NewInterServiceVerifier("", "pinksync", nil)
	assert.Error(t, err)
}

func TestGenerateAndVerify(t *testing.T) {
	v := newVerifier(t, "shared-secret")
	token, err := v.GenerateToken("scheduler", time.Minute)
	require.NoError(t, err)

	subject, err := v.VerifyInterServiceToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "scheduler", subject)
}

func TestVerify_Expired(t *testing.T) {
	v := newVerifier(t, "shared-secret")
	token, err := v.GenerateToken("scheduler", -time.Minute)
	require.NoError(t, err)

	_, err = v.VerifyInterServiceToken(context.Background(), token)
	assert.True(t, errors.Is(err, models.ErrTokenExpired))
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := newVerifier(t, "other-secret").GenerateToken("scheduler", time.Minute)
	require.NoError(t, err)

	_, err = newVerifier(t, "shared-secret").VerifyInterServiceToken(context.Background(), token)
	assert.True(t, errors.Is(err, models.ErrTokenInvalid))
}

func TestVerify_Malformed(t *testing.T) {
	_, err := newVerifier(t, "shared-secret").VerifyInterServiceToken(context.Background(), "not-a-jwt")
	assert.True(t, errors.Is(err, models.ErrTokenMalformed))
}

func TestVerify_MissingSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = newVerifier(t, "shared-secret").VerifyInterServiceToken(context.Background(), token)
	assert.True(t, errors.Is(err, models.ErrTokenInvalid))
}
