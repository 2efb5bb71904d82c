// Package auth verifies bearer tokens issued by the identity provider.
// The storefront never stores credentials; it only reads who the caller is.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shashiranjanraj/storefront/config"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Claims holds the typed JWT payload.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token grants back-office access.
func (c *Claims) IsAdmin() bool { return c != nil && c.Role == RoleAdmin }

func secret() []byte {
	return []byte(config.JWTSecret())
}

// GenerateToken signs a token for userID. Used by the auth:token command and tests.
func GenerateToken(userID, role string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: user id is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
}

// ValidateToken parses and validates a JWT string. Only HS256 is accepted.
func ValidateToken(t string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(t, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return secret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}

	return claims, nil
}
