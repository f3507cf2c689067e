package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store is the persistence boundary for audit entries. Implementations must
// make Append atomic with respect to concurrent appends and must never
// mutate or drop an entry once appended. Query returns entries newest-first.
//
// Clear is deliberately absent: destroying audit history is not part of the
// store contract. The in-memory implementation exposes it separately for
// test isolation.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Query(ctx context.Context, f Filter) ([]*Entry, error)
}

// matches reports whether an entry satisfies the filter. Card-number
// correlation checks both the resource key and the details payload, since
// callers record the card in either place depending on the operation.
func matches(e *Entry, f Filter) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.CardNumber != "" {
		if strings.Contains(e.Resource, f.CardNumber) {
			return true
		}
		if v, ok := e.Details["card_number"].(string); ok && v == f.CardNumber {
			return true
		}
		return false
	}
	return true
}

// sortNewestFirst orders entries by timestamp descending, sequence number
// breaking ties.
func sortNewestFirst(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Seq > entries[j].Seq
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

// MemoryStore is the in-process default Store: a mutex-guarded append-only
// slice, live for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, f Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if matches(e, f) {
			result = append(result, e)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear discards all entries. Test isolation only; nothing in the
// application's request path can reach it.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
