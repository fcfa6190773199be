// Package pgtest holds the opt-in Postgres harness shared by store integration tests.
//
// Tests using it are skipped unless COPYDESK_DATABASE_URL is set. Outside CI an
// unreachable server also skips, so local runs stay fast.
package pgtest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"copydesk/cmd/identity/ids"
)

// EnvDatabaseURL names the variable holding the integration database DSN.
const EnvDatabaseURL = "COPYDESK_DATABASE_URL"

// OpenPool connects to the integration database or skips the test.
// The pool is closed on test cleanup.
func OpenPool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	return openPool(t, 0)
}

// OpenPoolWithMaxConns is OpenPool with the pool capped at maxConns
// connections.
func OpenPoolWithMaxConns(t testing.TB, maxConns int32) *pgxpool.Pool {
	t.Helper()
	return openPool(t, maxConns)
}

func openPool(t testing.TB, maxConns int32) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv(EnvDatabaseURL))
	if raw == "" {
		t.Skipf("integration test skipped: %s not set", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", EnvDatabaseURL, err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
		cfg.MinConns = 0
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if ShouldSkip(err) {
			t.Skipf("integration test skipped: Postgres unreachable (%s set): %v", EnvDatabaseURL, err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	t.Cleanup(pool.Close)
	return pool
}

// NewSchema creates an isolated schema with every copydesk table and drops it
// on cleanup. It returns the schema name.
func NewSchema(t testing.TB, pool *pgxpool.Pool) string {
	t.Helper()

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	schema := "copydesk_it_" + strings.ToLower(id)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	if _, err := pool.Exec(ctx, DDL(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return schema
}

// DDL returns the table definitions for schema.
func DDL(schema string) string {
	users := pgx.Identifier{schema, "users"}.Sanitize()
	refresh := pgx.Identifier{schema, "refresh_tokens"}.Sanitize()
	audit := pgx.Identifier{schema, "security_audit_logs"}.Sanitize()
	accounts := pgx.Identifier{schema, "copy_trade_accounts"}.Sanitize()

	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL,
  username_norm TEXT NOT NULL,
  email TEXT NULL,
  email_norm TEXT NULL,
  password_hash TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT true,
  is_admin BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT uq_users_username_norm UNIQUE (username_norm),
  CONSTRAINT uq_users_email_norm UNIQUE (email_norm)
);

CREATE TABLE IF NOT EXISTS %[2]s (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
  session_id TEXT NOT NULL,
  token_hash TEXT NOT NULL,
  csrf_token TEXT NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL,
  revoked_at TIMESTAMPTZ NULL,
  last_used_at TIMESTAMPTZ NULL,
  created_ip TEXT NULL,
  created_user_agent TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT uq_refresh_tokens_token_hash UNIQUE (token_hash),
  CONSTRAINT chk_refresh_tokens_hash_len CHECK (char_length(token_hash) = 64)
);

CREATE INDEX IF NOT EXISTS idx_refresh_tokens_session_id ON %[2]s (session_id);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON %[2]s (user_id);

CREATE TABLE IF NOT EXISTS %[3]s (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NULL REFERENCES %[1]s(id) ON DELETE SET NULL,
  action TEXT NOT NULL,
  target_type TEXT NULL,
  target_id TEXT NULL,
  success BOOLEAN NOT NULL DEFAULT false,
  reason TEXT NULL,
  ip TEXT NULL,
  user_agent TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_security_audit_logs_action ON %[3]s (action);

CREATE TABLE IF NOT EXISTS %[4]s (
  id BIGSERIAL PRIMARY KEY,
  account_number TEXT NOT NULL,
  account_password TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT uq_copy_trade_accounts_number UNIQUE (account_number)
);
`, users, refresh, audit, accounts)
}

// ShouldSkip reports whether err looks like an unreachable server. Always
// false under CI so a broken database fails the build there.
func ShouldSkip(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
