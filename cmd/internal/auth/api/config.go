package api

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"copydesk/cmd/internal/auth/csrf"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid auth api config")

// Config controls transport-level auth behavior.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	CookieSecure      bool
	AccessCookieName  string
	RefreshCookieName string
	CSRFCookieName    string
	CSRFHeaderName    string
	RefreshCookiePath string

	// LegacySunset is the instant after which /api/auth/* answers 410.
	LegacySunset time.Time

	// RevealTTL is advertised to clients as how long a revealed secret may be shown.
	RevealTTL time.Duration
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      1 << 20, // 1 MiB
		AccessCookieName:  "copydesk_access",
		RefreshCookieName: "copydesk_refresh",
		CSRFCookieName:    "copydesk_csrf",
		CSRFHeaderName:    csrf.DefaultHeaderName,
		RefreshCookiePath: "/api/v2/auth",
		LegacySunset:      time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC),
		RevealTTL:         30 * time.Second,
	}
}

// LoadConfigFromEnv loads auth API config from environment variables.
//
// Optional:
//   - COPYDESK_TRUST_PROXY
//   - COPYDESK_MAX_BODY_BYTES
//   - COPYDESK_COOKIE_SECURE
//   - COPYDESK_COOKIE_ACCESS_NAME, COPYDESK_COOKIE_REFRESH_NAME, COPYDESK_COOKIE_CSRF_NAME
//   - COPYDESK_CSRF_HEADER
//   - COPYDESK_V1_SUNSET (RFC 3339)
//   - COPYDESK_PASSWORD_REVEAL_TTL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.TrustProxy = envBool("COPYDESK_TRUST_PROXY", cfg.TrustProxy)
	cfg.MaxBodyBytes = envInt64("COPYDESK_MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.CookieSecure = envBool("COPYDESK_COOKIE_SECURE", cfg.CookieSecure)
	cfg.AccessCookieName = envString("COPYDESK_COOKIE_ACCESS_NAME", cfg.AccessCookieName)
	cfg.RefreshCookieName = envString("COPYDESK_COOKIE_REFRESH_NAME", cfg.RefreshCookieName)
	cfg.CSRFCookieName = envString("COPYDESK_COOKIE_CSRF_NAME", cfg.CSRFCookieName)
	cfg.CSRFHeaderName = envString("COPYDESK_CSRF_HEADER", cfg.CSRFHeaderName)
	cfg.RevealTTL = envDuration("COPYDESK_PASSWORD_REVEAL_TTL", cfg.RevealTTL)

	if v := strings.TrimSpace(os.Getenv("COPYDESK_V1_SUNSET")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.LegacySunset = t.UTC()
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	names := map[string]struct{}{}
	for _, n := range []string{c.AccessCookieName, c.RefreshCookieName, c.CSRFCookieName} {
		if n == "" {
			return ErrConfig
		}
		if _, dup := names[n]; dup {
			return ErrConfig
		}
		names[n] = struct{}{}
	}
	if c.CSRFHeaderName == "" || c.MaxBodyBytes <= 0 {
		return ErrConfig
	}
	return nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
