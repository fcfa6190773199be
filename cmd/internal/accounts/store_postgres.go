package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore reads <schema>.copy_trade_accounts. The pool is owned by the caller.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("accounts: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "public"
	}
	if !pgIdentRe.MatchString(schema) {
		return nil, fmt.Errorf("accounts: invalid schema identifier")
	}
	return &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{schema, "copy_trade_accounts"}.Sanitize(),
	}, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := s.pool.QueryRow(ctx, `
		SELECT id, account_number, account_password, created_at
		FROM `+s.table+`
		WHERE id = $1
	`, id).Scan(&a.ID, &a.AccountNumber, &a.EncryptedPassword, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (s *PostgresStore) Create(ctx context.Context, accountNumber, encryptedPassword string) (Account, error) {
	a := Account{AccountNumber: accountNumber, EncryptedPassword: encryptedPassword}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO `+s.table+` (account_number, account_password)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, accountNumber, encryptedPassword).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return Account{}, err
	}
	return a, nil
}
