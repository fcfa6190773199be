package password

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores (x/crypto: rejects) input past this many bytes.
const bcryptMaxInput = 72

// Hash hashes a password with bcrypt and returns the encoded hash string.
// Policy is not applied here; call Validate for newly chosen passwords.
func (c Config) Hash(password string) (string, error) {
	cost := c.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", ErrInvalidCost
	}

	h, err := bcrypt.GenerateFromPassword(bcryptInput(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

// Verify reports whether password matches encodedHash.
// Mismatches and malformed hashes both return false.
func (c Config) Verify(encodedHash, password string) bool {
	if encodedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), bcryptInput(password)) == nil
}

// Hash hashes with DefaultConfig.
func Hash(password string) (string, error) { return DefaultConfig().Hash(password) }

// Verify verifies with DefaultConfig. The cost is read from the hash itself.
func Verify(encodedHash, password string) bool { return DefaultConfig().Verify(encodedHash, password) }

func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	// 44 bytes of base64 keeps the pre-hash free of NUL bytes.
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
