// Package transcript holds the in-memory ordered turn list for the active
// session. The turn controller owns the single live turn while it streams;
// everything else in the store is finalized and read-only to callers.
package transcript

import (
	"sync"

	"github.com/isntboxs/b3s-chat/internal/domain"
)

// Store is the in-memory transcript of the active session. All operations
// are atomic with respect to readers: Turns never observes a partially
// rebuilt list.
type Store struct {
	mu    sync.RWMutex
	turns []domain.Turn
}

// NewStore creates an empty transcript.
func NewStore() *Store {
	return &Store{}
}

// Load replaces the full turn list wholesale, used when switching sessions.
func (s *Store) Load(turns []domain.Turn) {
	copied := make([]domain.Turn, len(turns))
	copy(copied, turns)

	s.mu.Lock()
	s.turns = copied
	s.mu.Unlock()
}

// Clear empties the transcript for a fresh, unsaved session.
func (s *Store) Clear() {
	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()
}

// Turns returns a snapshot copy of the transcript.
func (s *Store) Turns() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]domain.Turn, len(s.turns))
	copy(copied, s.turns)
	return copied
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Last returns the trailing turn, if any.
func (s *Store) Last() (domain.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.turns) == 0 {
		return domain.Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// AppendFinalized appends a finalized turn. When the trailing turn is the
// live partial with the same ID it is replaced in place, transferring
// ownership of the turn to the store.
func (s *Store) AppendFinalized(turn domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.turns); n > 0 && s.turns[n-1].ID == turn.ID {
		s.turns[n-1] = turn
		return
	}
	s.turns = append(s.turns, turn)
}

// PublishPartial replaces the trailing in-flight turn with a fresh snapshot,
// appending it the first time. Readers always see the latest complete
// prefix, never a half-applied delta.
func (s *Store) PublishPartial(turn domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.turns); n > 0 && s.turns[n-1].ID == turn.ID {
		s.turns[n-1] = turn
		return
	}
	s.turns = append(s.turns, turn)
}

// DropLast removes and returns the trailing turn, used by regenerate.
func (s *Store) DropLast() (domain.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns) == 0 {
		return domain.Turn{}, false
	}
	last := s.turns[len(s.turns)-1]
	s.turns = s.turns[:len(s.turns)-1]
	return last, true
}
