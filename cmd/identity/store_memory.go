package identity

import (
	"context"
	"sync"

	"copydesk/cmd/security/password"
)

// MemoryStore is an in-process Store for development without a database and for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	byID     map[int64]User
	byName   map[string]int64
	byEmail  map[string]int64
	password password.Config
}

// NewMemoryStore builds an empty store hashing with cfg.
func NewMemoryStore(cfg password.Config) *MemoryStore {
	return &MemoryStore{
		byID:     make(map[int64]User),
		byName:   make(map[string]int64),
		byEmail:  make(map[string]int64),
		password: cfg,
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	// Hash outside the lock; bcrypt is deliberately slow.
	nu, err := prepareCreate(op, s.password, in)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[nu.usernameNorm]; ok {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	if nu.emailNorm != "" {
		if _, ok := s.byEmail[nu.emailNorm]; ok {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
	}

	s.nextID++
	u := nu.user(s.nextID)
	s.byID[u.ID] = u
	s.byName[nu.usernameNorm] = u.ID
	if nu.emailNorm != "" {
		s.byEmail[nu.emailNorm] = u.ID
	}
	return u, nil
}

func (s *MemoryStore) GetByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[NormalizeUsername(username)]
	if !ok {
		return User{}, notFound("identity.GetByUsername")
	}
	return s.byID[id], nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, notFound("identity.GetByID")
	}
	return u, nil
}

// SetActive toggles the active flag. It exists for tests and operator tooling.
func (s *MemoryStore) SetActive(id int64, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return false
	}
	u.Active = active
	s.byID[id] = u
	return true
}
