package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/workbridge/backend/internal/models"
)

// DeliverNotificationArgs is the queued payload for one notification.
type DeliverNotificationArgs struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	RelatedID   uuid.UUID `json:"related_id"`
	RelatedType string    `json:"related_type"`
}

func (DeliverNotificationArgs) Kind() string { return "deliver_notification" }

// InsertOpts keeps notification delivery off the default queue and bounds
// River's retries; a notification that cannot be delivered is dropped.
func (DeliverNotificationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueNotifications, MaxAttempts: 3}
}

// QueueNotifications is the River queue notifications are delivered on.
const QueueNotifications = "notifications"

// InsertTxFunc enqueues a notification job within the given transaction.
// Provided by main using river.Client.InsertTx.
type InsertTxFunc func(ctx context.Context, tx pgx.Tx, args DeliverNotificationArgs) error

// Dispatcher enqueues notifications transactionally with the state change
// that produced them. Delivery happens asynchronously in the worker and is
// never awaited by the workflow.
type Dispatcher struct {
	insert InsertTxFunc
}

func NewDispatcher(insert InsertTxFunc) *Dispatcher {
	return &Dispatcher{insert: insert}
}

func (d *Dispatcher) EnqueueTx(ctx context.Context, tx pgx.Tx, n models.Notification) error {
	return d.insert(ctx, tx, DeliverNotificationArgs{
		RecipientID: n.RecipientID,
		Type:        n.Type,
		Message:     n.Message,
		RelatedID:   n.RelatedID,
		RelatedType: n.RelatedType,
	})
}
