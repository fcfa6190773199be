package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Rotation is serialized by SELECT ... FOR UPDATE on the presented record, so
// two concurrent rotations of the same token cannot both succeed. The owner
// is joined into the locking select, so a rotation holds exactly one pool
// connection.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
	users string
}

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPostgresStore builds a store over <schema>.refresh_tokens and reads owners
// from <schema>.users. schema defaults to "public".
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "public"
	}
	if !pgIdentRe.MatchString(schema) {
		return nil, fmt.Errorf("session: invalid schema identifier")
	}
	return &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{schema, "refresh_tokens"}.Sanitize(),
		users: pgx.Identifier{schema, "users"}.Sanitize(),
	}, nil
}

const recordColumns = `id, user_id, session_id, token_hash, csrf_token, expires_at, revoked_at,
	last_used_at, COALESCE(created_ip, ''), COALESCE(created_user_agent, ''), created_at`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.SessionID,
		&r.TokenHash,
		&r.CSRFToken,
		&r.ExpiresAt,
		&r.RevokedAt,
		&r.LastUsedAt,
		&r.CreatedIP,
		&r.CreatedUserAgent,
		&r.CreatedAt,
	)
	return r, err
}

// Insert creates a new refresh record.
func (s *PostgresStore) Insert(ctx context.Context, r Record) (Record, error) {
	return insertRecord(ctx, s.pool, s.table, r)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertRecord(ctx context.Context, q queryRower, table string, r Record) (Record, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO `+table+` (
			user_id, session_id, token_hash, csrf_token, expires_at,
			created_ip, created_user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, r.UserID, r.SessionID, r.TokenHash, r.CSRFToken, r.ExpiresAt,
		nullIfEmpty(r.CreatedIP), nullIfEmpty(r.CreatedUserAgent), r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

// Rotate runs the lock-decide-revoke-insert sequence in one transaction.
func (s *PostgresStore) Rotate(ctx context.Context, tokenHash string, now time.Time, decide RotateFunc) (Record, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return Record{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		current   Record
		ownerName *string
		ownerLive *bool
	)
	err = tx.QueryRow(ctx, `
		SELECT t.id, t.user_id, t.session_id, t.token_hash, t.csrf_token,
		       t.expires_at, t.revoked_at, t.last_used_at,
		       COALESCE(t.created_ip, ''), COALESCE(t.created_user_agent, ''), t.created_at,
		       u.username, u.is_active
		FROM `+s.table+` t
		LEFT JOIN `+s.users+` u ON u.id = t.user_id
		WHERE t.token_hash = $1
		  AND t.revoked_at IS NULL
		  AND t.expires_at > $2
		FOR UPDATE OF t
	`, tokenHash, now).Scan(
		&current.ID,
		&current.UserID,
		&current.SessionID,
		&current.TokenHash,
		&current.CSRFToken,
		&current.ExpiresAt,
		&current.RevokedAt,
		&current.LastUsedAt,
		&current.CreatedIP,
		&current.CreatedUserAgent,
		&current.CreatedAt,
		&ownerName,
		&ownerLive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	var owner Owner
	if ownerName != nil {
		owner = Owner{Found: true, Username: *ownerName, Active: ownerLive != nil && *ownerLive}
	}

	next, ok, err := decide(current, owner)
	if err != nil || !ok {
		return Record{}, false, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE `+s.table+`
		SET revoked_at = $2,
		    last_used_at = $2
		WHERE id = $1
	`, current.ID, now); err != nil {
		return Record{}, false, err
	}

	next, err = insertRecord(ctx, tx, s.table, next)
	if err != nil {
		return Record{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, false, err
	}
	return next, true, nil
}

// RevokeActive revokes in a single conditional UPDATE, so a second call for
// the same token finds nothing.
func (s *PostgresStore) RevokeActive(ctx context.Context, tokenHash string, now time.Time) (Record, bool, error) {
	r, err := scanRecord(s.pool.QueryRow(ctx, `
		UPDATE `+s.table+`
		SET revoked_at = $2,
		    last_used_at = $2
		WHERE token_hash = $1
		  AND revoked_at IS NULL
		  AND expires_at > $2
		RETURNING `+recordColumns,
		tokenHash, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
