package models

import (
	"time"

	"github.com/google/uuid"
)

// Agreement tracks the bilateral sign-off for one engagement. The row is
// created on the first sign action; re-signing only refreshes the timestamp.
type Agreement struct {
	EngagementID   uuid.UUID  `json:"engagement_id"`
	ClientSigned   bool       `json:"client_signed"`
	WorkerSigned   bool       `json:"worker_signed"`
	ClientSignedAt *time.Time `json:"client_signed_at,omitempty"`
	WorkerSignedAt *time.Time `json:"worker_signed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// FullySigned reports whether both parties have signed. Handover submission
// is gated on this predicate.
func (a *Agreement) FullySigned() bool {
	return a != nil && a.ClientSigned && a.WorkerSigned
}
