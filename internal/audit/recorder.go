package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/simrs/payerlink/internal/payer"
)

// Recorder is the append/query facade over a Store. Appends never fail for
// runtime reasons: when the backing store is unavailable the entry is kept in
// a local best-effort buffer and a warning is logged, so an audit outage
// never blocks a clinical or billing action. Append does fail for malformed
// input (missing action or resource), which is a bug at the call site.
type Recorder struct {
	store  Store
	logger zerolog.Logger
	seq    *int64

	// actor bound to entries appended through this recorder.
	userID   string
	userName string

	// buffer holds entries the store refused, shared across For-scoped
	// copies of the recorder.
	buf *fallbackBuffer
}

type fallbackBuffer struct {
	mu      sync.Mutex
	entries []*Entry
}

// NewRecorder creates a Recorder writing to store, attributing entries to the
// system actor until For is called.
func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		logger:   logger,
		seq:      new(int64),
		userID:   SystemUserID,
		userName: SystemUserName,
		buf:      &fallbackBuffer{},
	}
}

// For returns a copy of the recorder bound to the acting user, so call sites
// tag every entry with the session's user without repeating the arguments.
// The underlying store, sequence, and fallback buffer are shared.
func (r *Recorder) For(userID, userName string) *Recorder {
	if userID == "" {
		return r
	}
	scoped := *r
	scoped.userID = userID
	scoped.userName = userName
	return &scoped
}

// AppendOption adjusts a single append.
type AppendOption func(*Entry)

// WithStatus overrides the entry status (default success).
func WithStatus(s Status) AppendOption {
	return func(e *Entry) { e.Status = s }
}

// WithUser overrides the acting user for this entry only.
func WithUser(id, name string) AppendOption {
	return func(e *Entry) {
		e.UserID = id
		e.UserName = name
	}
}

// Append constructs and stores an entry, assigning its ID, sequence number,
// and timestamp, and returns the stored entry for correlation.
func (r *Recorder) Append(ctx context.Context, action Action, resource string, details map[string]any, opts ...AppendOption) (*Entry, error) {
	if action == "" {
		return nil, fmt.Errorf("audit: action is required")
	}
	if resource == "" {
		return nil, fmt.Errorf("audit: resource is required")
	}

	e := &Entry{
		ID:        uuid.New(),
		Seq:       atomic.AddInt64(r.seq, 1),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Resource:  resource,
		UserID:    r.userID,
		UserName:  r.userName,
		Details:   details,
		Status:    StatusSuccess,
	}
	for _, o := range opts {
		o(e)
	}

	if err := r.store.Append(ctx, e); err != nil {
		r.buf.mu.Lock()
		r.buf.entries = append(r.buf.entries, e)
		buffered := len(r.buf.entries)
		r.buf.mu.Unlock()

		r.logger.Warn().
			Err(err).
			Str("action", string(e.Action)).
			Str("resource", e.Resource).
			Int("buffered", buffered).
			Msg("audit store unavailable, entry buffered")
		return e, nil
	}

	r.flush(ctx)
	return e, nil
}

// flush retries buffered entries after a successful append. Entries the
// store still refuses go back on the buffer.
func (r *Recorder) flush(ctx context.Context) {
	r.buf.mu.Lock()
	pending := r.buf.entries
	r.buf.entries = nil
	r.buf.mu.Unlock()

	for i, e := range pending {
		if err := r.store.Append(ctx, e); err != nil {
			r.buf.mu.Lock()
			r.buf.entries = append(pending[i:], r.buf.entries...)
			r.buf.mu.Unlock()
			return
		}
	}
}

// Query returns entries matching the filter, newest first. Buffered entries
// that have not reached the store yet are included, so a store outage does
// not hide recent activity from the trail.
func (r *Recorder) Query(ctx context.Context, f Filter) ([]*Entry, error) {
	stored, err := r.store.Query(ctx, f)
	if err != nil {
		return nil, err
	}

	r.buf.mu.Lock()
	for _, e := range r.buf.entries {
		if matches(e, f) {
			stored = append(stored, e)
		}
	}
	r.buf.mu.Unlock()

	sortNewestFirst(stored)
	return stored, nil
}

// LogFailure records a classified gateway failure against a resource.
func (r *Recorder) LogFailure(ctx context.Context, perr *payer.PayerError, resource string) (*Entry, error) {
	return r.Append(ctx, ActionError, resource, map[string]any{
		"code":      string(perr.Code),
		"type":      string(perr.Type),
		"message":   perr.Message,
		"retryable": perr.Retryable,
		"severity":  string(payer.SeverityOf(perr)),
	}, WithStatus(StatusError))
}

// LogVerification records the outcome of a membership verification.
func (r *Recorder) LogVerification(ctx context.Context, cardNumber string, eligible bool, details map[string]any) (*Entry, error) {
	if details == nil {
		details = map[string]any{}
	}
	details["card_number"] = cardNumber
	details["eligible"] = eligible
	status := StatusSuccess
	if !eligible {
		status = StatusWarning
	}
	return r.Append(ctx, ActionVerify, "member:"+cardNumber, details, WithStatus(status))
}

// LogClaimCreated records a successful claim submission.
func (r *Recorder) LogClaimCreated(ctx context.Context, claimID, resource string, details map[string]any) (*Entry, error) {
	if details == nil {
		details = map[string]any{}
	}
	details["claim_id"] = claimID
	return r.Append(ctx, ActionCreateClaim, resource, details)
}

// LogClaimCancelled records a successful claim cancellation.
func (r *Recorder) LogClaimCancelled(ctx context.Context, claimID, reason string) (*Entry, error) {
	return r.Append(ctx, ActionCancelClaim, "claim:"+claimID, map[string]any{
		"claim_id": claimID,
		"reason":   reason,
	})
}

// LogManualOverride records a human bypassing the gateway, always with
// warning status so overrides stand out in review.
func (r *Recorder) LogManualOverride(ctx context.Context, resource, reason string) (*Entry, error) {
	return r.Append(ctx, ActionManualOverride, resource, map[string]any{
		"reason": reason,
	}, WithStatus(StatusWarning))
}
