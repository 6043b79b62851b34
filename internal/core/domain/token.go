package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a JWT access token without verifying its
// signature. The client never holds the signing key; the expiry is only used
// to skip work for a credential that is certainly dead. ok is false for
// opaque tokens and tokens without exp.
func TokenExpiry(accessToken string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	t, err := claims.GetExpirationTime()
	if err != nil || t == nil {
		return time.Time{}, false
	}
	return t.Time, true
}

// TokenExpired reports whether the token carries an exp claim in the past.
func TokenExpired(accessToken string, now time.Time) bool {
	exp, ok := TokenExpiry(accessToken)
	return ok && !now.Before(exp)
}
