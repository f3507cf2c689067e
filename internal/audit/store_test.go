package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newEntry(seq int64, action Action, resource string, details map[string]any) *Entry {
	return &Entry{
		ID:        uuid.New(),
		Seq:       seq,
		Timestamp: time.Now().UTC(),
		Action:    action,
		Resource:  resource,
		UserID:    SystemUserID,
		UserName:  SystemUserName,
		Details:   details,
		Status:    StatusSuccess,
	}
}

func TestMemoryStore_AppendAndQuery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := newEntry(1, ActionVerify, "member:111", nil)
	second := newEntry(2, ActionCreateClaim, "encounter:E-1", nil)
	if err := s.Append(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Append(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := s.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != second.ID {
		t.Error("expected newest entry first")
	}
}

func TestMemoryStore_SameTimestampOrderedBySeq(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ts := time.Now().UTC()

	for seq := int64(1); seq <= 3; seq++ {
		e := newEntry(seq, ActionVerify, "member:111", nil)
		e.Timestamp = ts
		s.Append(ctx, e)
	}

	entries, _ := s.Query(ctx, Filter{})
	if entries[0].Seq != 3 || entries[2].Seq != 1 {
		t.Errorf("expected seq order 3,2,1, got %d,%d,%d", entries[0].Seq, entries[1].Seq, entries[2].Seq)
	}
}

func TestMemoryStore_FilterByAction(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Append(ctx, newEntry(1, ActionVerify, "member:111", nil))
	s.Append(ctx, newEntry(2, ActionError, "member:111", nil))
	s.Append(ctx, newEntry(3, ActionVerify, "member:222", nil))

	entries, _ := s.Query(ctx, Filter{Action: ActionVerify})
	if len(entries) != 2 {
		t.Fatalf("expected 2 verify entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Action != ActionVerify {
			t.Errorf("unexpected action %s", e.Action)
		}
	}
}

func TestMemoryStore_FilterByCardNumber(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Matches via resource key.
	s.Append(ctx, newEntry(1, ActionVerify, "member:0001234567890", nil))
	// Matches via details payload.
	s.Append(ctx, newEntry(2, ActionCreateClaim, "encounter:E-9", map[string]any{"card_number": "0001234567890"}))
	// Does not match.
	s.Append(ctx, newEntry(3, ActionVerify, "member:555", nil))

	entries, _ := s.Query(ctx, Filter{CardNumber: "0001234567890"})
	if len(entries) != 2 {
		t.Fatalf("expected 2 matching entries, got %d", len(entries))
	}
}

func TestMemoryStore_FilterNoMatches(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Append(ctx, newEntry(1, ActionVerify, "member:111", nil))

	entries, err := s.Query(ctx, Filter{CardNumber: "does-not-exist"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	const n = 100
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(seq int64) {
			defer wg.Done()
			s.Append(ctx, newEntry(seq, ActionVerify, "member:111", nil))
		}(int64(i))
	}
	wg.Wait()

	if s.Len() != n {
		t.Errorf("expected %d entries after concurrent appends, got %d", n, s.Len())
	}
}

func TestMemoryStore_Clear(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Append(ctx, newEntry(1, ActionVerify, "member:111", nil))

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("expected empty store after clear, got %d", s.Len())
	}
}
