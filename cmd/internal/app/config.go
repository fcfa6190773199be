package app

import (
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	// Environment is "development" or "production".
	Environment string

	HTTPAddr  string
	LogLevel  string
	LogFormat string // json | pretty

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	RedisURL string

	JWTSecret     string
	EncryptionKey string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	MetricsEnabled bool

	// If true, COPYDESK_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool
}

// IsProduction reports whether production guardrails apply.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		Environment: EnvString("COPYDESK_ENV", "development"),

		HTTPAddr:  EnvString("COPYDESK_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("COPYDESK_LOG_LEVEL", "info"),
		LogFormat: EnvString("COPYDESK_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("COPYDESK_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("COPYDESK_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("COPYDESK_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("COPYDESK_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("COPYDESK_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("COPYDESK_DATABASE_URL", ""),
		DBSchema:    EnvString("COPYDESK_DB_SCHEMA", "public"),
		DBMaxConns:  EnvInt32("COPYDESK_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("COPYDESK_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("COPYDESK_READINESS_REQUIRE_DB", false),

		RedisURL: EnvString("COPYDESK_REDIS_URL", ""),

		JWTSecret:     EnvString("COPYDESK_JWT_SECRET", ""),
		EncryptionKey: EnvString("COPYDESK_ENCRYPTION_KEY", ""),

		AdminUsername: EnvString("COPYDESK_ADMIN_USERNAME", ""),
		AdminEmail:    EnvString("COPYDESK_ADMIN_EMAIL", ""),
		AdminPassword: EnvString("COPYDESK_ADMIN_PASSWORD", ""),

		CORSAllowedOrigins:   EnvList("COPYDESK_CORS_ORIGINS", []string{"http://localhost:3000"}),
		CORSAllowCredentials: EnvBool("COPYDESK_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("COPYDESK_CORS_MAX_AGE", 600),

		MetricsEnabled: EnvBool("COPYDESK_METRICS_ENABLED", true),

		RequireTokenHMAC: EnvBool("COPYDESK_REQUIRE_TOKEN_HMAC", false),
	}
}
