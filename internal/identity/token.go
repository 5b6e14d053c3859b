package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry extracts the exp claim from a JWT access token without
// verifying its signature. Backends usually report the token lifetime
// alongside the token; this is the fallback when they do not.
//
// The token is NOT trusted as a result of this call — expiry is the only
// claim read, and only to schedule refreshes and mark stale sessions.
func TokenExpiry(raw string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// SignLocalToken mints an HS256 token for identities that never touch a
// backend (guest personas, the development auto-auth override).
func SignLocalToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
