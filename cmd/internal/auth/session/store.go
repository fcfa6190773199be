package session

import (
	"context"
	"time"

	"copydesk/cmd/identity"
)

// Record mirrors a refresh_tokens row.
type Record struct {
	ID               int64
	UserID           int64
	SessionID        string
	TokenHash        string
	CSRFToken        string
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	LastUsedAt       *time.Time
	CreatedIP        string
	CreatedUserAgent string
	CreatedAt        time.Time
}

// Active reports whether r can still be used at now.
func (r Record) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// Owner is the user row behind a refresh record, read together with the
// locked record. Found is false when the user no longer exists.
type Owner struct {
	Found    bool
	Username string
	Active   bool
}

// RotateFunc decides a rotation while the current record is locked. It
// returns the successor to insert, or ok=false to abort without changes.
// It runs while the record is locked and must not touch the record store
// or its database.
type RotateFunc func(current Record, owner Owner) (next Record, ok bool, err error)

// UserLookup resolves record owners for stores that do not share a database
// with the user table.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (identity.User, error)
}

// Store abstracts refresh record persistence.
//
// Lookups only ever see active records: revoked_at IS NULL AND expires_at > now.
type Store interface {
	// Insert persists a new record and returns it with ID and CreatedAt set.
	Insert(ctx context.Context, r Record) (Record, error)

	// Rotate locks the active record with tokenHash, resolves its owner in the
	// same unit of work, asks decide for a successor and, when accepted, revokes the current record and inserts the
	// successor atomically. decide is not called when no active record
	// matched. rotated is false whenever nothing changed.
	Rotate(ctx context.Context, tokenHash string, now time.Time, decide RotateFunc) (next Record, rotated bool, err error)

	// RevokeActive revokes the active record with tokenHash and returns it.
	RevokeActive(ctx context.Context, tokenHash string, now time.Time) (Record, bool, error)
}
