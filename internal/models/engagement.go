package models

import (
	"time"

	"github.com/google/uuid"
)

// Engagement kind and status enums.
const (
	EngagementKindProject = "project"
	EngagementKindContest = "contest"

	EngagementStatusActive = "active"
	EngagementStatusClosed = "closed"
)

// Engagement is the committed client/worker pair for one award, either a
// project bid award or a contest entry award. AmountCents is the snapshot
// taken at award time; settlement never re-reads the mutable listing.
type Engagement struct {
	ID          uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	SubjectID   uuid.UUID  `json:"subject_id"`
	ClientID    uuid.UUID  `json:"client_id"`
	WorkerID    uuid.UUID  `json:"worker_id"`
	AmountCents int64      `json:"amount_cents"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}
