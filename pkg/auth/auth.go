// Package auth issues and verifies operator tokens. A token names the
// actor that committed, approved or cancelled something; it carries no
// permissions.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var jwtAlgorithm = jwt.SigningMethodHS256

// DefaultTTL is how long issued tokens stay valid
const DefaultTTL = 24 * time.Hour

// ErrNoSecret is returned when signing or verifying without a secret
var ErrNoSecret = errors.New("auth: no signing secret configured")

// Claims represents the JWT claims
type Claims struct {
	Actor   string `json:"actor"`
	Console string `json:"console,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies operator tokens with a shared secret
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens creates a token issuer/verifier for secret
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a secret is configured
func (t *Tokens) Enabled() bool {
	return t != nil && len(t.secret) > 0
}

// CreateToken creates a signed token for actor. console optionally names
// the operator console the token was issued to.
func (t *Tokens) CreateToken(actor, console string, ttl time.Duration) (string, error) {
	if !t.Enabled() {
		return "", ErrNoSecret
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", errors.New("auth: actor is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := t.now()
	claims := &Claims{
		Actor:   actor,
		Console: console,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(t.secret)
}

// VerifyToken verifies a token and returns its claims
func (t *Tokens) VerifyToken(tokenString string) (*Claims, error) {
	if !t.Enabled() {
		return nil, ErrNoSecret
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Actor == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
