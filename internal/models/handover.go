package models

import (
	"time"

	"github.com/google/uuid"
)

// Handover status enums. Transitions are monotonic:
// none -> submitted -> accepted | disputed.
const (
	HandoverStatusNone      = "none"
	HandoverStatusSubmitted = "submitted"
	HandoverStatusAccepted  = "accepted"
	HandoverStatusDisputed  = "disputed"
)

// FormatUnknown is stored when no file extension can be parsed from the URL.
const FormatUnknown = "unknown"

// HandoverFile is one deliverable reference. The URL is opaque; bytes are
// never inspected by this core.
type HandoverFile struct {
	FileURL    string    `json:"file_url"`
	Format     string    `json:"format"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Handover is the deliverable submission and review record for one
// engagement. Each submit wholesale-replaces Files.
type Handover struct {
	EngagementID uuid.UUID      `json:"engagement_id"`
	Status       string         `json:"status"`
	Files        []HandoverFile `json:"files"`
	SubmittedAt  *time.Time     `json:"submitted_at,omitempty"`
	AcceptedAt   *time.Time     `json:"accepted_at,omitempty"`
}
