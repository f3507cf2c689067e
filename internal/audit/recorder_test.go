package audit

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/simrs/payerlink/internal/payer"
)

func testRecorder() (*Recorder, *MemoryStore) {
	store := NewMemoryStore()
	return NewRecorder(store, zerolog.New(io.Discard)), store
}

// flakyStore fails appends until healed.
type flakyStore struct {
	*MemoryStore
	failing bool
}

func (s *flakyStore) Append(ctx context.Context, e *Entry) error {
	if s.failing {
		return fmt.Errorf("store unavailable")
	}
	return s.MemoryStore.Append(ctx, e)
}

func TestRecorder_AppendAssignsIdentity(t *testing.T) {
	r, _ := testRecorder()
	ctx := context.Background()

	e, err := r.Append(ctx, ActionVerify, "member:111", map[string]any{"card_number": "111"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected an assigned ID")
	}
	if e.Seq == 0 {
		t.Error("expected an assigned sequence number")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected an assigned timestamp")
	}
	if e.UserID != SystemUserID || e.UserName != SystemUserName {
		t.Errorf("expected system actor by default, got %s/%s", e.UserID, e.UserName)
	}
	if e.Status != StatusSuccess {
		t.Errorf("expected default success status, got %s", e.Status)
	}

	entries, _ := r.Query(ctx, Filter{})
	if len(entries) != 1 || entries[0].ID != e.ID {
		t.Error("expected the appended entry to be queryable")
	}
}

func TestRecorder_AppendValidatesInput(t *testing.T) {
	r, _ := testRecorder()
	ctx := context.Background()

	if _, err := r.Append(ctx, "", "member:111", nil); err == nil {
		t.Error("expected error for missing action")
	}
	if _, err := r.Append(ctx, ActionVerify, "", nil); err == nil {
		t.Error("expected error for missing resource")
	}
}

func TestRecorder_For_BindsActor(t *testing.T) {
	r, _ := testRecorder()
	ctx := context.Background()

	scoped := r.For("dr-17", "dr. Ahmad")
	e, err := scoped.Append(ctx, ActionVerify, "member:111", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.UserID != "dr-17" || e.UserName != "dr. Ahmad" {
		t.Errorf("expected scoped actor, got %s/%s", e.UserID, e.UserName)
	}

	// The base recorder is unchanged.
	e2, _ := r.Append(ctx, ActionVerify, "member:222", nil)
	if e2.UserID != SystemUserID {
		t.Errorf("expected system actor on base recorder, got %s", e2.UserID)
	}
}

func TestRecorder_StoreOutageDoesNotFailAppend(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failing: true}
	r := NewRecorder(store, zerolog.New(io.Discard))
	ctx := context.Background()

	e, err := r.Append(ctx, ActionError, "member:111", map[string]any{"code": "5003"})
	if err != nil {
		t.Fatalf("append must not fail on store outage, got %v", err)
	}

	// The buffered entry is still visible to queries.
	entries, err := r.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != e.ID {
		t.Fatal("expected buffered entry in query results")
	}
	if store.Len() != 0 {
		t.Error("expected nothing in the failing store")
	}
}

func TestRecorder_BufferFlushesWhenStoreHeals(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failing: true}
	r := NewRecorder(store, zerolog.New(io.Discard))
	ctx := context.Background()

	r.Append(ctx, ActionError, "member:111", nil)
	r.Append(ctx, ActionError, "member:222", nil)

	store.failing = false
	r.Append(ctx, ActionVerify, "member:333", nil)

	if store.Len() != 3 {
		t.Errorf("expected buffered entries flushed to store, got %d", store.Len())
	}
}

func TestRecorder_LogFailure(t *testing.T) {
	r, _ := testRecorder()
	ctx := context.Background()

	perr := payer.ClassifyCode("2002", "")
	e, err := r.LogFailure(ctx, perr, "member:0001234567890")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Action != ActionError || e.Status != StatusError {
		t.Errorf("expected error/error, got %s/%s", e.Action, e.Status)
	}
	if e.Details["code"] != "2002" {
		t.Errorf("expected code in details, got %v", e.Details["code"])
	}
	if e.Details["retryable"] != false {
		t.Errorf("expected retryable in details, got %v", e.Details["retryable"])
	}
	if e.Details["severity"] != "medium" {
		t.Errorf("expected severity in details, got %v", e.Details["severity"])
	}
}

func TestRecorder_LogVerification(t *testing.T) {
	r, _ := testRecorder()
	ctx := context.Background()

	ok, _ := r.LogVerification(ctx, "111", true, nil)
	if ok.Action != ActionVerify || ok.Status != StatusSuccess {
		t.Errorf("expected verify/success, got %s/%s", ok.Action, ok.Status)
	}
	if ok.Details["card_number"] != "111" {
		t.Error("expected card number in details")
	}

	warn, _ := r.LogVerification(ctx, "222", false, nil)
	if warn.Status != StatusWarning {
		t.Errorf("expected warning for ineligible member, got %s", warn.Status)
	}
}

func TestRecorder_LogClaimLifecycle(t *testing.T) {
	r, _ := testRecorder()
	ctx := context.Background()

	created, _ := r.LogClaimCreated(ctx, "CLM-1", "encounter:E-1", nil)
	if created.Action != ActionCreateClaim || created.Status != StatusSuccess {
		t.Errorf("expected create-claim/success, got %s/%s", created.Action, created.Status)
	}
	if created.Details["claim_id"] != "CLM-1" {
		t.Error("expected claim id in details")
	}

	cancelled, _ := r.LogClaimCancelled(ctx, "CLM-1", "wrong diagnosis")
	if cancelled.Action != ActionCancelClaim {
		t.Errorf("expected cancel-claim, got %s", cancelled.Action)
	}
}

func TestRecorder_LogManualOverride(t *testing.T) {
	r, _ := testRecorder()
	ctx := context.Background()

	e, _ := r.For("dr-17", "dr. Ahmad").LogManualOverride(ctx, "claim:CLM-1", "gateway down, patient needs surgery")
	if e.Action != ActionManualOverride || e.Status != StatusWarning {
		t.Errorf("expected manual-override/warning, got %s/%s", e.Action, e.Status)
	}
	if e.UserID != "dr-17" {
		t.Errorf("expected the acting user on the override, got %s", e.UserID)
	}
}
