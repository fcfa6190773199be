// Package csrf implements double-submit cookie validation.
package csrf

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"copydesk/cmd/security/token"
)

// DefaultHeaderName is the request header that must echo the CSRF cookie.
const DefaultHeaderName = "X-CSRF-Token"

// ErrInvalid is returned for a missing or mismatched token. Maps to 403.
var ErrInvalid = errors.New("csrf token missing or invalid")

// Guard checks that the CSRF header echoes the CSRF cookie on unsafe methods.
type Guard struct {
	CookieName string
	HeaderName string
}

// New returns a Guard. An empty headerName selects DefaultHeaderName.
func New(cookieName, headerName string) Guard {
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	return Guard{CookieName: cookieName, HeaderName: headerName}
}

// IsSafeMethod reports whether method is read-only (GET, HEAD, OPTIONS).
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Check validates the pair for method. Safe methods always pass.
func (g Guard) Check(method, cookieValue, headerValue string) error {
	if IsSafeMethod(method) {
		return nil
	}
	if !equal(cookieValue, headerValue) {
		return ErrInvalid
	}
	return nil
}

// CheckRequest reads the cookie and header from r and calls Check.
func (g Guard) CheckRequest(r *http.Request) error {
	var cookieValue string
	if c, err := r.Cookie(g.CookieName); err == nil {
		cookieValue = c.Value
	}
	return g.Check(r.Method, cookieValue, r.Header.Get(g.HeaderName))
}

// DefaultTokenBytes is the entropy of a CSRF token when none is configured.
const DefaultTokenBytes = 32

// NewToken returns a fresh random CSRF token carrying nBytes of entropy.
// nBytes <= 0 selects DefaultTokenBytes.
func NewToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = DefaultTokenBytes
	}
	return token.NewOpaque(nBytes)
}

func equal(a, b string) bool {
	if a == "" || b == "" || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
