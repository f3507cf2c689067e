// Package audit keeps an immutable, queryable trail of every payer gateway
// interaction: verifications, claim submissions and cancellations, failures,
// and manual overrides. Entries are append-only; the only supported
// operations are append and read.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action is the closed set of auditable gateway interactions.
type Action string

const (
	ActionVerify         Action = "verify"
	ActionCreateClaim    Action = "create-claim"
	ActionCancelClaim    Action = "cancel-claim"
	ActionError          Action = "error"
	ActionManualOverride Action = "manual-override"
)

// Status is the outcome recorded on an entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusWarning Status = "warning"
)

// SystemUserID and SystemUserName identify the system actor used when no
// authenticated user is attached to an interaction.
const (
	SystemUserID   = "system"
	SystemUserName = "System"
)

// Entry is one immutable audit record. ID and Seq are assigned by the
// recorder at append time; Seq is monotonic within a store and breaks ties
// between entries recorded in the same clock tick so sort order is stable.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Seq       int64          `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Action    Action         `json:"action"`
	Resource  string         `json:"resource"`
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	Details   map[string]any `json:"details,omitempty"`
	Status    Status         `json:"status"`
}

// Filter narrows a query. Zero fields match everything.
type Filter struct {
	CardNumber string
	Action     Action
}
