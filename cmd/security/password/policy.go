package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password policy. It does not mutate input.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak {
		if looksVeryWeak(password) {
			return ErrWeakPassword
		}
	}

	return nil
}

// looksVeryWeak only rejects the handful of patterns every credential-stuffing list starts with.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	allSame := true
	var first rune
	for i, r := range s {
		if i == 0 {
			first = r
			continue
		}
		if r != first {
			allSame = false
			break
		}
	}
	if allSame {
		return true
	}

	// PIN-like.
	onlyDigits := true
	for _, r := range s {
		if !unicode.IsDigit(r) {
			onlyDigits = false
			break
		}
	}
	if onlyDigits && utf8.RuneCountInString(s) < 12 {
		return true
	}

	switch strings.ToLower(s) {
	case "password", "password123", "123456", "123456789", "qwerty", "qwerty123", "11111111", "admin123", "changeme":
		return true
	}

	return false
}
