package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// AccessTTL is the lifetime of access tokens and of revocation markers.
	AccessTTL time.Duration

	// RefreshTTL is the absolute lifetime of each refresh record.
	RefreshTTL time.Duration

	// RefreshTokenBytes is the entropy of opaque refresh tokens.
	RefreshTokenBytes int

	// CSRFTokenBytes is the entropy of the double-submit CSRF token.
	CSRFTokenBytes int

	// RevocationFailClosed treats a security store error during the
	// revocation check as "revoked". The default keeps sessions usable while
	// the store is down.
	RevocationFailClosed bool
}

// DefaultConfig returns the development defaults.
func DefaultConfig() Config {
	return Config{
		AccessTTL:         30 * time.Minute,
		RefreshTTL:        7 * 24 * time.Hour,
		RefreshTokenBytes: 32,
		CSRFTokenBytes:    32,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - COPYDESK_ACCESS_TTL
//   - COPYDESK_REFRESH_TTL
//   - COPYDESK_REFRESH_TOKEN_BYTES (32..64)
//   - COPYDESK_REVOCATION_FAIL_CLOSED
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("COPYDESK_ACCESS_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := strings.TrimSpace(os.Getenv("COPYDESK_REFRESH_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := strings.TrimSpace(os.Getenv("COPYDESK_REFRESH_TOKEN_BYTES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}

	if v := strings.TrimSpace(os.Getenv("COPYDESK_REVOCATION_FAIL_CLOSED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.RevocationFailClosed = b
	}

	// A refresh record that dies before its access token would strand sessions.
	if cfg.RefreshTTL < cfg.AccessTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
