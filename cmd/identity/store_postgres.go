package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"copydesk/cmd/security/password"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Schema/table identifiers are quoted to avoid injection via identifiers.
type PostgresStore struct {
	pool     *pgxpool.Pool
	schema   string
	password password.Config
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// WithPasswordConfig sets the hashing cost and policy applied by CreateUser.
func WithPasswordConfig(cfg password.Config) PostgresOption {
	return func(s *PostgresStore) error {
		s.password = cfg
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:     pool,
		schema:   "public",
		password: password.DefaultConfig(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `id, username, COALESCE(email, ''), password_hash, is_active, is_admin, created_at`

// CreateUser inserts a new active user.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	nu, err := prepareCreate(op, s.password, in)
	if err != nil {
		return User{}, err
	}

	var email, emailNorm any
	if nu.email != "" {
		email, emailNorm = nu.email, nu.emailNorm
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO `+s.table("users")+` (
		     username, username_norm, email, email_norm, password_hash, is_active, is_admin, created_at
		   ) VALUES ($1, $2, $3, $4, $5, true, $6, $7)
		   RETURNING id`,
		nu.username, nu.usernameNorm, email, emailNorm, nu.hash, nu.admin, nu.now,
	).Scan(&id)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return nu.user(id), nil
}

// GetByUsername finds a user by case-insensitive username.
func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.GetByUsername"

	norm := NormalizeUsername(username)
	if norm == "" {
		return User{}, notFound(op)
	}
	return s.getOne(ctx, op, `WHERE username_norm = $1`, norm)
}

// GetByID finds a user by id.
func (s *PostgresStore) GetByID(ctx context.Context, id int64) (User, error) {
	const op = "identity.GetByID"

	if id <= 0 {
		return User{}, notFound(op)
	}
	return s.getOne(ctx, op, `WHERE id = $1`, id)
}

func (s *PostgresStore) getOne(ctx context.Context, op, where string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.table("users")+` `+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Active, &u.Admin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notFound(op)
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch c {
	case "uq_users_username_norm":
		return "username", true
	case "uq_users_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}
