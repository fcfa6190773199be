package app

import (
	"errors"
	"fmt"
	"strings"

	"copydesk/cmd/security/token"
)

// Minimum secret sizes enforced in production.
const (
	minJWTSecretBytes     = 32
	minAdminPasswordBytes = 12
)

// ValidateSecurityConfig enforces copydesk's security policy at startup.
//
// Outside production only the explicit HMAC policy is checked; development
// falls back to ephemeral secrets and in-memory stores. In production every
// violation is reported at once.
func ValidateSecurityConfig(cfg Config) error {
	var errs []error

	if cfg.RequireTokenHMAC {
		if err := validateTokenHMAC(); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.IsProduction() {
		if len(cfg.JWTSecret) < minJWTSecretBytes {
			errs = append(errs, fmt.Errorf("security policy: COPYDESK_JWT_SECRET must be at least %d bytes", minJWTSecretBytes))
		}
		if strings.TrimSpace(cfg.EncryptionKey) == "" {
			errs = append(errs, errors.New("security policy: COPYDESK_ENCRYPTION_KEY is required"))
		}
		if cfg.AdminUsername != "" && len(cfg.AdminPassword) < minAdminPasswordBytes {
			errs = append(errs, fmt.Errorf("security policy: COPYDESK_ADMIN_PASSWORD must be at least %d bytes", minAdminPasswordBytes))
		}
		if strings.TrimSpace(cfg.RedisURL) == "" {
			errs = append(errs, errors.New("security policy: COPYDESK_REDIS_URL is required"))
		}
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			errs = append(errs, errors.New("security policy: COPYDESK_DATABASE_URL is required"))
		}
		for _, o := range cfg.CORSAllowedOrigins {
			if strings.Contains(o, "*") {
				errs = append(errs, fmt.Errorf("security policy: wildcard CORS origin %q is not allowed", o))
			}
		}
	}

	return errors.Join(errs...)
}

func validateTokenHMAC() error {
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: COPYDESK_REQUIRE_TOKEN_HMAC=true but COPYDESK_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: COPYDESK_REQUIRE_TOKEN_HMAC=true but COPYDESK_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}
	if !token.HMACEnabled() {
		return errors.New("security policy: COPYDESK_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return nil
}
