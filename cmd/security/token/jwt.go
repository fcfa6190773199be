package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded claim set of an access token.
//
// Numeric claims such as exp decode as float64, following encoding/json.
type Claims map[string]any

// Subject returns the "sub" claim or "".
func (c Claims) Subject() string { return c.str("sub") }

// SessionID returns the "sid" claim or "".
func (c Claims) SessionID() string { return c.str("sid") }

// ExpiresAt returns the "exp" claim as a time, or the zero time if absent.
func (c Claims) ExpiresAt() time.Time {
	switch v := c["exp"].(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC()
	case int64:
		return time.Unix(v, 0).UTC()
	case int:
		return time.Unix(int64(v), 0).UTC()
	}
	return time.Time{}
}

func (c Claims) str(k string) string {
	s, _ := c[k].(string)
	return s
}

// Codec signs and verifies HS256 access tokens with a single server secret.
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec builds a Codec. The secret must be non-empty.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrSecretMissing
	}
	k := make([]byte, len(secret))
	copy(k, secret)
	return &Codec{secret: k, now: time.Now}, nil
}

// WithClock returns a copy of c that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Encode signs claims plus exp (now+ttl). No other registered claim is added,
// so Decode returns exactly the input keys and exp. The input map is not mutated.
func (c *Codec) Encode(claims map[string]any, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	now := c.now()

	mc := make(jwt.MapClaims, len(claims)+1)
	for k, v := range claims {
		mc[k] = v
	}
	mc["exp"] = now.Add(ttl).Unix()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(c.secret)
}

// Decode verifies signature, algorithm and expiry. Any failure yields (nil, false).
func (c *Codec) Decode(raw string) (Claims, bool) {
	if raw == "" || len(raw) > 8192 {
		return nil, false
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	mc := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(raw, mc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, false
	}
	return Claims(mc), true
}
