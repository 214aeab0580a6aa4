package platform

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenInfo is what can be read from a session token without the backend's
// key. It is informational only: the backend remains the sole judge of
// whether a token is valid.
type TokenInfo struct {
	Subject   string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	IssuedAt  time.Time `json:"issuedAt,omitempty" yaml:"issued_at,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty" yaml:"expires_at,omitempty"`
}

// Expired reports whether the token carries an expiry that has passed.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// InspectToken decodes the claims of a JWT session token without verifying
// its signature. Opaque tokens report false.
func InspectToken(token string) (TokenInfo, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenInfo{}, false
	}

	info := TokenInfo{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, true
}
