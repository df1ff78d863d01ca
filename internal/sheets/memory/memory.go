// Package memory is an in-memory journal used in tests and as a
// fallback when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"spendir/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items []core.Spend
}

func New() *Store {
	return &Store{}
}

// Append stores the spend and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, spend core.Spend) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-appending the same identity replaces the row, mirroring what
	// an edit does to the journal.
	for i := range s.items {
		if s.items[i].Cell == spend.Cell && s.items[i].MessageID == spend.MessageID {
			s.items[i] = spend
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}

	s.items = append(s.items, spend)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Delete removes the row matching the spend identity, if present.
func (s *Store) Delete(_ context.Context, cell, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Cell == cell && s.items[i].MessageID == messageID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}

// Items returns a copy of the stored rows.
func (s *Store) Items() []core.Spend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Spend(nil), s.items...)
}
