// Package token signs and verifies self-contained session credentials.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the session lifetime used when callers pass a zero ttl.
const DefaultTTL = 24 * time.Hour

// ErrInvalid covers every verification failure: bad signature, tampering,
// expiry, malformed input. Callers get no further detail.
var ErrInvalid = errors.New("invalid or expired token")

// Identity is the assertion carried by a session token.
type Identity struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type claims struct {
	Identity
	jwt.RegisteredClaims
}

// Sign issues an HS256 token embedding id, valid for ttl. A zero ttl means
// DefaultTTL; a negative ttl produces an already-expired token.
func Sign(secret string, id Identity, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	c := claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// Parse verifies signature and expiry and returns the embedded identity.
func Parse(secret, tokenString string) (*Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalid
	}
	c, ok := parsed.Claims.(*claims)
	if !ok {
		return nil, ErrInvalid
	}
	return &c.Identity, nil
}
