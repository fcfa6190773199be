package audit

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresSink inserts into <schema>.security_audit_logs.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresSink builds a sink. schema defaults to "public".
func NewPostgresSink(pool *pgxpool.Pool, schema string) (*PostgresSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("audit: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "public"
	}
	if !pgIdentRe.MatchString(schema) {
		return nil, fmt.Errorf("audit: invalid schema identifier")
	}
	return &PostgresSink{
		pool:  pool,
		table: pgx.Identifier{schema, "security_audit_logs"}.Sanitize(),
	}, nil
}

// Insert runs in its own transaction so a failed audit write can never poison
// the caller's unit of work.
func (s *PostgresSink) Insert(ctx context.Context, e Event) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO `+s.table+` (
			user_id, action, target_type, target_id, success, reason, ip, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.UserID, string(e.Action), nullIfEmpty(e.TargetType), nullIfEmpty(e.TargetID), e.Success,
		nullIfEmpty(e.Reason), nullIfEmpty(e.IP), nullIfEmpty(e.UserAgent), e.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
