package models

import (
	"time"

	"github.com/google/uuid"
)

// Rater role enums. At most one rating exists per (engagement, role).
const (
	RaterRoleClient = "client"
	RaterRoleWorker = "worker"
)

// Rating bounds.
const (
	RatingStarsMin     = 1
	RatingStarsMax     = 5
	RatingTextMinChars = 10
)

// Rating is an optional post-settlement review of the counter-party.
type Rating struct {
	ID           uuid.UUID `json:"id"`
	EngagementID uuid.UUID `json:"engagement_id"`
	RaterRole    string    `json:"rater_role"`
	RaterID      uuid.UUID `json:"rater_id"`
	TargetUserID uuid.UUID `json:"target_user_id"`
	Stars        int       `json:"stars"`
	ReviewText   string    `json:"review_text"`
	CreatedAt    time.Time `json:"created_at"`
}
