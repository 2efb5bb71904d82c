package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	tok, err := GenerateToken("user-1", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.True(t, claims.IsAdmin())
}

func TestExpiredTokenRejected(t *testing.T) {
	claims := Claims{
		UserID: "user-1",
		Role:   RoleCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
	require.NoError(t, err)

	_, err = ValidateToken(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestWrongSecretRejected(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "x"}).SignedString([]byte("other"))
	require.NoError(t, err)

	_, err = ValidateToken(tok)
	assert.Error(t, err)
}

func TestGenerateRequiresUser(t *testing.T) {
	_, err := GenerateToken("", RoleCustomer, time.Hour)
	assert.Error(t, err)
}
