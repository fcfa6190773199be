package accounts

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher seals account secrets with XChaCha20-Poly1305.
//
// Ciphertexts are base64(std) of nonce || sealed box. The 24-byte random
// nonce makes per-message nonce collisions a non-issue.
type Cipher struct {
	key []byte
}

// NewCipher derives a 256-bit key from secret with SHA-256. Any non-empty
// secret is accepted; production validation enforces its length.
func NewCipher(secret string) (*Cipher, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrKeyMissing
	}
	sum := sha256.Sum256([]byte(secret))
	return &Cipher{key: sum[:]}, nil
}

// NewRandomCipher returns a cipher with an ephemeral key. Data sealed with it
// is unreadable after restart; it exists for development without a key.
func NewRandomCipher() (*Cipher, error) {
	k := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, err
	}
	return &Cipher{key: k}, nil
}

// Encrypt seals plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Tampered or foreign data yields ErrCiphertext.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrCiphertext
	}
	nonce, box := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return "", ErrCiphertext
	}
	return string(plain), nil
}
