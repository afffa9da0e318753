package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-long-enough-0"

func TestTokenRoundtrip(t *testing.T) {
	svc := NewIdentityService(testSecret)

	token, err := svc.GenerateToken("alice@example.com", time.Hour)
	require.NoError(t, err)

	email, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := NewIdentityService(testSecret).GenerateToken("alice@example.com", time.Hour)
	require.NoError(t, err)

	_, err = NewIdentityService("a-completely-different-secret-value").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewIdentityService(testSecret)
	token, err := svc.GenerateToken("alice@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewIdentityService(testSecret)
	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestValidateTokenMissingSubject(t *testing.T) {
	svc := NewIdentityService(testSecret)

	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
