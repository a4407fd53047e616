package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/workbridge/backend/internal/engagement"
	"github.com/workbridge/backend/internal/faults"
	"github.com/workbridge/backend/internal/models"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// EngagementStore is the minimal engagement access the engine needs.
type EngagementStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error)
	MarkClosedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// HandoverStore is the minimal handover access the engine needs. AcceptTx
// must be a conditional write: it only applies while the handover is still
// submitted.
type HandoverStore interface {
	Get(ctx context.Context, engagementID uuid.UUID) (*models.Handover, error)
	AcceptTx(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID) (bool, error)
}

// WalletCreditor credits the worker's wallet and appends the ledger entry
// inside the engine's transaction.
type WalletCreditor interface {
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, engagementID *uuid.UUID, amountCents int64, reason string) (*models.WalletLedgerEntry, error)
}

// Notifier enqueues notifications inside the engine's transaction.
type Notifier interface {
	EnqueueTx(ctx context.Context, tx pgx.Tx, n models.Notification) error
}

// Engine releases payment exactly once per engagement, atomically with the
// handover's accepted flip. The conditional submitted->accepted write is the
// exactly-once gate: of two racing accept calls, one commits and the other
// gets Conflict with zero mutations.
type Engine struct {
	Pool        TxBeginner
	Engagements EngagementStore
	Handovers   HandoverStore
	Wallets     WalletCreditor
	Sources     map[string]engagement.Source
	Notifier    Notifier
	Logger      *slog.Logger
}

func NewEngine(
	pool TxBeginner,
	engagements EngagementStore,
	handovers HandoverStore,
	wallets WalletCreditor,
	sources map[string]engagement.Source,
	notifier Notifier,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Pool:        pool,
		Engagements: engagements,
		Handovers:   handovers,
		Wallets:     wallets,
		Sources:     sources,
		Notifier:    notifier,
		Logger:      logger,
	}
}

// Release moves engagement.AmountCents to the worker's wallet, appends the
// ledger entry, flips the handover to accepted, and closes the engagement
// and its parent listing, all in one transaction. Any sub-step failure
// rolls the whole unit back and the handover stays submitted.
func (e *Engine) Release(ctx context.Context, engagementID, actorID uuid.UUID) error {
	eng, err := e.Engagements.GetByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return faults.NotFound("engagement %s not found", engagementID)
		}
		return err
	}
	if actorID != eng.ClientID {
		return faults.Forbidden("actor %s is not the client of engagement %s", actorID, engagementID)
	}

	h, err := e.Handovers.Get(ctx, engagementID)
	if err != nil {
		return err
	}
	switch {
	case h == nil || h.Status == models.HandoverStatusNone:
		return faults.PreconditionFailed("no deliverables submitted for engagement %s", engagementID)
	case h.Status == models.HandoverStatusAccepted:
		return faults.Conflict("engagement %s is already settled", engagementID)
	case h.Status == models.HandoverStatusDisputed:
		return faults.PreconditionFailed("handover for engagement %s is disputed", engagementID)
	}

	src, ok := e.Sources[eng.Kind]
	if !ok {
		return fmt.Errorf("no source registered for engagement kind %q", eng.Kind)
	}

	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// The exactly-once gate. The write commits only if the status read
	// above still holds; a lost race surfaces as Conflict, never a second
	// credit.
	flipped, err := e.Handovers.AcceptTx(ctx, tx, engagementID)
	if err != nil {
		return err
	}
	if !flipped {
		return faults.Conflict("handover for engagement %s changed state concurrently", engagementID)
	}

	// Amount is the immutable snapshot taken at award time, never re-read
	// from the mutable project/contest record.
	if _, err := e.Wallets.Credit(ctx, tx, eng.WorkerID, &eng.ID, eng.AmountCents, models.LedgerReasonEngagementRelease); err != nil {
		return err
	}

	closed, err := e.Engagements.MarkClosedTx(ctx, tx, engagementID)
	if err != nil {
		return err
	}
	if !closed {
		return faults.Conflict("engagement %s is no longer active", engagementID)
	}
	if err := src.CloseSubject(ctx, tx, eng.SubjectID); err != nil {
		return err
	}

	for _, n := range []models.Notification{
		{
			RecipientID: eng.WorkerID,
			Type:        models.NotificationPaymentReleased,
			Message:     fmt.Sprintf("Payment of %d cents for %q was released to your wallet", eng.AmountCents, eng.Title),
			RelatedID:   engagementID,
			RelatedType: models.RelatedTypeEngagement,
		},
		{
			RecipientID: eng.WorkerID,
			Type:        models.NotificationRatingAvailable,
			Message:     fmt.Sprintf("You can now rate the client for %q", eng.Title),
			RelatedID:   engagementID,
			RelatedType: models.RelatedTypeEngagement,
		},
	} {
		if err := e.Notifier.EnqueueTx(ctx, tx, n); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	e.Logger.Info("settlement released",
		"engagement_id", engagementID, "worker_id", eng.WorkerID, "amount_cents", eng.AmountCents)
	return nil
}
