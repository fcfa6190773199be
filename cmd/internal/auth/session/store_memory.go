package session

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"copydesk/cmd/identity"
)

// MemoryStore is an in-process Store. The decide callback of Rotate runs
// under the store lock and must not call back into the store.
type MemoryStore struct {
	users UserLookup

	mu     sync.Mutex
	nextID int64
	byHash map[string]*Record
}

// NewMemoryStore builds a store that resolves rotation owners through users.
func NewMemoryStore(users UserLookup) *MemoryStore {
	return &MemoryStore{users: users, byHash: make(map[string]*Record)}
}

func (s *MemoryStore) Insert(_ context.Context, r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(r), nil
}

func (s *MemoryStore) insertLocked(r Record) Record {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.nextID++
	r.ID = s.nextID
	stored := r
	s.byHash[r.TokenHash] = &stored
	return r
}

func (s *MemoryStore) activeLocked(tokenHash string, now time.Time) *Record {
	r, ok := s.byHash[tokenHash]
	if !ok || !r.Active(now) {
		return nil
	}
	return r
}

func (s *MemoryStore) Rotate(ctx context.Context, tokenHash string, now time.Time, decide RotateFunc) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.activeLocked(tokenHash, now)
	if current == nil {
		return Record{}, false, nil
	}
	owner, err := s.ownerOf(ctx, current.UserID)
	if err != nil {
		return Record{}, false, err
	}
	next, ok, err := decide(*current, owner)
	if err != nil || !ok {
		return Record{}, false, err
	}

	ts := now
	current.RevokedAt = &ts
	current.LastUsedAt = &ts
	return s.insertLocked(next), true, nil
}

func (s *MemoryStore) ownerOf(ctx context.Context, userID int64) (Owner, error) {
	if s.users == nil {
		return Owner{}, nil
	}
	u, err := s.users.GetByID(ctx, userID)
	if identity.IsNotFound(err) {
		return Owner{}, nil
	}
	if err != nil {
		return Owner{}, err
	}
	return Owner{Found: true, Username: u.Username, Active: u.Active}, nil
}

func (s *MemoryStore) RevokeActive(_ context.Context, tokenHash string, now time.Time) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.activeLocked(tokenHash, now)
	if r == nil {
		return Record{}, false, nil
	}
	ts := now
	r.RevokedAt = &ts
	r.LastUsedAt = &ts
	return *r, true, nil
}

// BySession returns every record minted for sid, oldest first.
func (s *MemoryStore) BySession(sid string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, r := range s.byHash {
		if r.SessionID == sid {
			out = append(out, *r)
		}
	}
	slices.SortFunc(out, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
