package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "caja/internal/sheets"
)

// Store is an in-process journal used when no spreadsheet is configured.
// Appending an event id twice keeps the first row.
type Store struct {
	mu    sync.Mutex
	items []ports.JournalEntry
	refs  map[string]string
}

var (
	_ ports.JournalWriter = (*Store)(nil)
	_ ports.JournalReader = (*Store)(nil)
)

func New() *Store {
	return &Store{refs: map[string]string{}}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e ports.JournalEntry) (string, error) {
	if e.EventID == "" || e.Kind == "" {
		return "", errors.New("journal entry needs an event id and kind")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[e.EventID]; ok {
		return ref, nil
	}
	s.items = append(s.items, e)
	ref := fmt.Sprintf("mem:%d", len(s.items))
	s.refs[e.EventID] = ref
	return ref, nil
}

func (s *Store) Recent(_ context.Context, limit int) ([]ports.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return append([]ports.JournalEntry(nil), items...), nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
