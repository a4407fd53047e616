package models

import (
	"time"

	"github.com/google/uuid"
)

// Contest entry status enums. Award is exclusive: at most one entry per
// contest ever becomes awarded.
const (
	ContestEntryStatusActive   = "active"
	ContestEntryStatusRejected = "rejected"
	ContestEntryStatusAwarded  = "awarded"
)

// ContestEntry is one participant's submission to a prize contest. Entries
// gate which participant may enter agreement creation; they are independent
// of the handover workflow itself.
type ContestEntry struct {
	ID            uuid.UUID `json:"id"`
	ContestID     uuid.UUID `json:"contest_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
