package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grocerly/storefront/core/clock"
)

// tokenClaims are the claims read out of an access token without
// signature verification. The backend re-verifies every request, so
// the local decode only gates UX decisions.
type tokenClaims struct {
	IsStaff     bool `json:"is_staff"`
	IsSuperuser bool `json:"is_superuser"`
	jwt.RegisteredClaims
}

var tokenParser = jwt.NewParser()

func decodeClaims(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	if _, _, err := tokenParser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// expiresWithin reports whether the token expires before now+leeway.
// Undecodable tokens and tokens without an exp claim count as expired.
func expiresWithin(token string, clk clock.Clock, leeway time.Duration) bool {
	claims, err := decodeClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.After(clk.Now().Add(leeway))
}
