package agreement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/workbridge/backend/internal/faults"
	"github.com/workbridge/backend/internal/models"
)

// Store is the minimal agreement repository interface for the service.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Get(ctx context.Context, engagementID uuid.UUID) (*models.Agreement, error)
	SignClientTx(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID) (*models.Agreement, error)
	SignWorkerTx(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID) (*models.Agreement, error)
}

// EngagementGetter resolves the engagement being signed.
type EngagementGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error)
}

// Notifier enqueues a notification inside the sign transaction. Delivery
// itself stays asynchronous and best-effort.
type Notifier interface {
	EnqueueTx(ctx context.Context, tx pgx.Tx, n models.Notification) error
}

// Service tracks bilateral sign-off. Both signatures gate handover
// submission; once both are true this module never revokes them.
type Service struct {
	store       Store
	engagements EngagementGetter
	notifier    Notifier
}

func NewService(store Store, engagements EngagementGetter, notifier Notifier) *Service {
	return &Service{store: store, engagements: engagements, notifier: notifier}
}

// SignAsClient records the client's signature. The actor must be the
// engagement's client.
func (s *Service) SignAsClient(ctx context.Context, engagementID, actorID uuid.UUID) (*models.Agreement, error) {
	return s.sign(ctx, engagementID, actorID, models.RaterRoleClient)
}

// SignAsWorker records the worker's signature. The actor must be the
// engagement's worker.
func (s *Service) SignAsWorker(ctx context.Context, engagementID, actorID uuid.UUID) (*models.Agreement, error) {
	return s.sign(ctx, engagementID, actorID, models.RaterRoleWorker)
}

// Get returns the agreement or nil when no party has signed yet.
func (s *Service) Get(ctx context.Context, engagementID uuid.UUID) (*models.Agreement, error) {
	return s.store.Get(ctx, engagementID)
}

func (s *Service) sign(ctx context.Context, engagementID, actorID uuid.UUID, role string) (*models.Agreement, error) {
	eng, err := s.engagements.GetByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, faults.NotFound("engagement %s not found", engagementID)
		}
		return nil, err
	}

	var counterparty uuid.UUID
	switch role {
	case models.RaterRoleClient:
		if actorID != eng.ClientID {
			return nil, faults.Forbidden("actor %s is not the client of engagement %s", actorID, engagementID)
		}
		counterparty = eng.WorkerID
	case models.RaterRoleWorker:
		if actorID != eng.WorkerID {
			return nil, faults.Forbidden("actor %s is not the worker of engagement %s", actorID, engagementID)
		}
		counterparty = eng.ClientID
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var a *models.Agreement
	if role == models.RaterRoleClient {
		a, err = s.store.SignClientTx(ctx, tx, engagementID)
	} else {
		a, err = s.store.SignWorkerTx(ctx, tx, engagementID)
	}
	if err != nil {
		return nil, err
	}

	n := models.Notification{
		RecipientID: counterparty,
		Type:        models.NotificationAgreementSigned,
		Message:     fmt.Sprintf("The %s signed the agreement for %q, awaiting your signature", role, eng.Title),
		RelatedID:   engagementID,
		RelatedType: models.RelatedTypeEngagement,
	}
	if a.FullySigned() {
		n.Type = models.NotificationAgreementComplete
		n.Message = fmt.Sprintf("Both parties signed the agreement for %q, handover can proceed", eng.Title)
	}
	if err := s.notifier.EnqueueTx(ctx, tx, n); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return a, nil
}
