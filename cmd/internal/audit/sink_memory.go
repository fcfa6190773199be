package audit

import (
	"context"
	"sync"
)

// MemorySink keeps events in process. Used without a database and in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
	fail   error
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Insert(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByAction returns recorded events with the given action.
func (s *MemorySink) ByAction(a Action) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Action == a {
			out = append(out, e)
		}
	}
	return out
}

// FailWith makes subsequent inserts return err (nil clears it).
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}
