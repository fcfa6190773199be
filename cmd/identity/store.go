package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"copydesk/cmd/security/password"
)

// User is a desk operator.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	Admin        bool
	CreatedAt    time.Time
}

// CreateUserInput describes a new operator. Password is the plain password;
// stores hash it and never persist it.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Admin    bool
	Now      time.Time
}

// Store is the user persistence boundary.
//
// Lookups are case-insensitive on username. Missing rows return an error
// matching ErrNotFound.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
}

// Authenticate looks up username and verifies plain against the stored hash.
// Unknown users, inactive users and wrong passwords are indistinguishable to
// the caller: all return ok=false. Unknown users still pay for one bcrypt
// compare so response timing does not reveal which usernames exist.
func Authenticate(ctx context.Context, s Store, pw password.Config, username, plain string) (User, bool, error) {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		if IsNotFound(err) {
			_ = pw.Verify(dummyHash(pw), plain)
			return User{}, false, nil
		}
		return User{}, false, err
	}
	if !pw.Verify(u.PasswordHash, plain) {
		return User{}, false, nil
	}
	if !u.Active {
		return User{}, false, nil
	}
	return u, true, nil
}

var dummyHashes sync.Map // bcrypt cost -> hash

func dummyHash(cfg password.Config) string {
	if v, ok := dummyHashes.Load(cfg.Cost); ok {
		return v.(string)
	}
	h, err := cfg.Hash("copydesk-timing-equalizer")
	if err != nil {
		return ""
	}
	dummyHashes.Store(cfg.Cost, h)
	return h
}

// newUser is a validated, normalized and hashed CreateUserInput.
type newUser struct {
	username     string
	usernameNorm string
	email        string
	emailNorm    string
	hash         string
	admin        bool
	now          time.Time
}

func prepareCreate(op string, cfg password.Config, in CreateUserInput) (newUser, error) {
	var nu newUser

	nu.username = strings.TrimSpace(in.Username)
	if nu.username == "" {
		return newUser{}, invalid(op, "username is required")
	}
	if len(nu.username) > 50 {
		return newUser{}, invalid(op, "username too long")
	}
	nu.email = strings.TrimSpace(in.Email)
	if len(nu.email) > 100 {
		return newUser{}, invalid(op, "email too long")
	}
	if err := cfg.Validate(in.Password); err != nil {
		return newUser{}, invalid(op, err.Error())
	}
	hash, err := cfg.Hash(in.Password)
	if err != nil {
		return newUser{}, invalid(op, err.Error())
	}
	nu.hash = hash
	nu.usernameNorm = NormalizeUsername(nu.username)
	if nu.email != "" {
		nu.emailNorm = NormalizeEmail(nu.email)
	}
	nu.admin = in.Admin
	nu.now = in.Now
	if nu.now.IsZero() {
		nu.now = time.Now().UTC()
	}
	return nu, nil
}

func (nu newUser) user(id int64) User {
	return User{
		ID:           id,
		Username:     nu.username,
		Email:        nu.email,
		PasswordHash: nu.hash,
		Active:       true,
		Admin:        nu.admin,
		CreatedAt:    nu.now,
	}
}
