package accounts

import (
	"context"
	"sync"
	"time"
)

// Account is the subset of a copy-trade account the security core touches.
type Account struct {
	ID                int64
	AccountNumber     string
	EncryptedPassword string
	CreatedAt         time.Time
}

// Store is the account persistence boundary. Get returns ErrNotFound for unknown ids.
type Store interface {
	Get(ctx context.Context, id int64) (Account, error)
	Create(ctx context.Context, accountNumber, encryptedPassword string) (Account, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]Account)}
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) Create(_ context.Context, accountNumber, encryptedPassword string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	a := Account{
		ID:                s.nextID,
		AccountNumber:     accountNumber,
		EncryptedPassword: encryptedPassword,
		CreatedAt:         time.Now().UTC(),
	}
	s.byID[a.ID] = a
	return a, nil
}
