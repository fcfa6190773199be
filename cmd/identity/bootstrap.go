package identity

import (
	"context"
	"log/slog"
	"strings"
)

// AdminSeed describes the operator created on first start.
type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// Enabled reports whether both username and password are configured.
func (a AdminSeed) Enabled() bool {
	return strings.TrimSpace(a.Username) != "" && a.Password != ""
}

// EnsureAdmin creates the seed admin if no user with that username exists.
// An existing user is left untouched, including its password and flags.
// It returns true when a user was created.
func EnsureAdmin(ctx context.Context, s Store, seed AdminSeed, log *slog.Logger) (bool, error) {
	if !seed.Enabled() {
		return false, nil
	}
	if log == nil {
		log = slog.Default()
	}

	_, err := s.GetByUsername(ctx, seed.Username)
	if err == nil {
		log.Info("identity.admin.exists", "username", seed.Username)
		return false, nil
	}
	if !IsNotFound(err) {
		return false, err
	}

	u, err := s.CreateUser(ctx, CreateUserInput{
		Username: seed.Username,
		Email:    seed.Email,
		Password: seed.Password,
		Admin:    true,
	})
	if err != nil {
		// Lost a race with another instance.
		if IsConflict(err) {
			log.Info("identity.admin.exists", "username", seed.Username)
			return false, nil
		}
		return false, err
	}

	log.Info("identity.admin.created", "username", u.Username, "user_id", u.ID)
	return true, nil
}
