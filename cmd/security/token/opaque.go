package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewOpaque returns a URL-safe random string built from nBytes of entropy.
func NewOpaque(nBytes int) (string, error) {
	if nBytes <= 0 {
		return "", fmt.Errorf("token: invalid byte length %d", nBytes)
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// URL-safe, no padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewRefresh returns a raw refresh token and the digest that is persisted for it.
func NewRefresh(nBytes int) (plain string, hashHex string, err error) {
	plain, err = NewOpaque(nBytes)
	if err != nil {
		return "", "", err
	}
	return plain, HashRefreshTokenHex(plain), nil
}
