package password

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Policy controls password validation for newly chosen passwords.
// It is never applied on Verify so legacy passwords keep working.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Cost   int
	Policy Policy
}

// DefaultConfig returns the baseline used by the admin bootstrap and tests.
func DefaultConfig() Config {
	return Config{
		Cost: bcrypt.DefaultCost,
		Policy: Policy{
			MinLength:      8,
			MaxLength:      1024,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - COPYDESK_BCRYPT_COST
// - COPYDESK_PASSWORD_MIN_LEN
// - COPYDESK_PASSWORD_MAX_LEN
// - COPYDESK_PASSWORD_REJECT_VERY_WEAK (true/false)
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("COPYDESK_BCRYPT_COST"); ok {
		n, err := atoiInRange(v, bcrypt.MinCost, bcrypt.MaxCost)
		if err != nil {
			return Config{}, fmt.Errorf("COPYDESK_BCRYPT_COST: %w", err)
		}
		cfg.Cost = n
	}

	if v, ok := os.LookupEnv("COPYDESK_PASSWORD_MIN_LEN"); ok {
		n, err := atoiInRange(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("COPYDESK_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("COPYDESK_PASSWORD_MAX_LEN"); ok {
		n, err := atoiInRange(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("COPYDESK_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := os.LookupEnv("COPYDESK_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("COPYDESK_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func atoiInRange(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}
