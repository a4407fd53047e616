package models

import "github.com/google/uuid"

// Notification type enums. The payload contract is fixed:
// {recipient_id, type, message, related_id, related_type}.
const (
	NotificationAgreementSigned   = "agreement_signed"
	NotificationAgreementComplete = "agreement_complete"
	NotificationHandoverSubmitted = "handover_submitted"
	NotificationHandoverDisputed  = "handover_disputed"
	NotificationPaymentReleased   = "payment_released"
	NotificationRatingAvailable   = "rating_available"
	NotificationEntryAwarded      = "entry_awarded"
	NotificationEntryRejected     = "entry_rejected"
)

// Related entity kinds for notifications.
const (
	RelatedTypeEngagement   = "engagement"
	RelatedTypeContestEntry = "contest_entry"
)

// Notification is handed to the dispatcher for best-effort async delivery.
// Delivery is never awaited and never rolls back the state change that
// produced it.
type Notification struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	RelatedID   uuid.UUID `json:"related_id"`
	RelatedType string    `json:"related_type"`
}
