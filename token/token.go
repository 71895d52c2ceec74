// Package token carries the client's knowledge about access-token lifetime.
// The server's token TTL is a fixed policy constant, not something the client
// discovers dynamically; JWT-shaped tokens additionally expose their own
// expiry, which is read without signature verification purely as bookkeeping.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServerTTL is the auth server's access-token lifetime.
const ServerTTL = 6 * time.Hour

// ExpiryOf computes the best-known expiry for a token issued at now.
// Precedence: the server's explicit expires_in, then the token's own exp
// claim when it parses as a JWT, then the fixed policy TTL. The token is
// treated as opaque; the claim read is unverified bookkeeping, never an
// authorization decision.
func ExpiryOf(raw string, expiresIn time.Duration, now time.Time) time.Time {
	if expiresIn > 0 {
		return now.Add(expiresIn)
	}
	if exp, ok := jwtExpiry(raw); ok {
		return exp
	}
	return now.Add(ServerTTL)
}

func jwtExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
