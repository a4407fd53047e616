package handover

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/workbridge/backend/internal/faults"
	"github.com/workbridge/backend/internal/models"
)

// FileInput is one deliverable reference as supplied by the caller. Format
// is optional; when empty it is derived from the URL extension.
type FileInput struct {
	FileURL string `json:"file_url"`
	Format  string `json:"format"`
}

// Store is the minimal handover repository interface for the service.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Get(ctx context.Context, engagementID uuid.UUID) (*models.Handover, error)
	ReplaceFilesTx(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID, files []models.HandoverFile) (bool, error)
	DisputeTx(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID) (bool, error)
}

// EngagementGetter resolves the engagement a handover belongs to.
type EngagementGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error)
}

// AgreementGetter checks the fully-signed precondition.
type AgreementGetter interface {
	Get(ctx context.Context, engagementID uuid.UUID) (*models.Agreement, error)
}

// Settler releases payment atomically with the accepted flip. Implemented
// by the settlement engine.
type Settler interface {
	Release(ctx context.Context, engagementID, actorID uuid.UUID) error
}

// Notifier enqueues a notification inside the mutation transaction.
type Notifier interface {
	EnqueueTx(ctx context.Context, tx pgx.Tx, n models.Notification) error
}

// Service runs the deliverable submission and review state machine:
// none -> submitted -> accepted | disputed. Accepted and disputed are
// terminal here; dispute resolution is an external arbitration capability.
type Service struct {
	store       Store
	engagements EngagementGetter
	agreements  AgreementGetter
	settler     Settler
	notifier    Notifier
}

func NewService(store Store, engagements EngagementGetter, agreements AgreementGetter, settler Settler, notifier Notifier) *Service {
	return &Service{
		store:       store,
		engagements: engagements,
		agreements:  agreements,
		settler:     settler,
		notifier:    notifier,
	}
}

// Get returns the handover record, synthesizing a status-none record when
// the worker has never submitted.
func (s *Service) Get(ctx context.Context, engagementID uuid.UUID) (*models.Handover, error) {
	h, err := s.store.Get(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return &models.Handover{EngagementID: engagementID, Status: models.HandoverStatusNone}, nil
	}
	return h, nil
}

// Submit records the worker's deliverables, wholesale-replacing any earlier
// file list. Requires a fully signed agreement and is only allowed while
// the handover is none or submitted.
func (s *Service) Submit(ctx context.Context, engagementID, actorID uuid.UUID, files []FileInput) (*models.Handover, error) {
	eng, err := s.engagements.GetByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, faults.NotFound("engagement %s not found", engagementID)
		}
		return nil, err
	}
	if actorID != eng.WorkerID {
		return nil, faults.Forbidden("actor %s is not the worker of engagement %s", actorID, engagementID)
	}
	if len(files) == 0 {
		return nil, faults.Validation("at least one deliverable file is required")
	}

	a, err := s.agreements.Get(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if !a.FullySigned() {
		return nil, faults.PreconditionFailed("agreement for engagement %s is not signed by both parties", engagementID)
	}

	now := time.Now().UTC()
	stored := make([]models.HandoverFile, len(files))
	for i, f := range files {
		format := f.Format
		if format == "" {
			format = detectFormat(f.FileURL)
		}
		stored[i] = models.HandoverFile{FileURL: f.FileURL, Format: format, UploadedAt: now}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.ReplaceFilesTx(ctx, tx, engagementID, stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, faults.Conflict("handover for engagement %s is already accepted or disputed", engagementID)
	}

	if err := s.notifier.EnqueueTx(ctx, tx, models.Notification{
		RecipientID: eng.ClientID,
		Type:        models.NotificationHandoverSubmitted,
		Message:     fmt.Sprintf("Deliverables for %q were submitted for your review", eng.Title),
		RelatedID:   engagementID,
		RelatedType: models.RelatedTypeEngagement,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.Get(ctx, engagementID)
}

// Accept releases payment and flips the handover to accepted as one atomic
// unit, delegated to the settlement engine. If settlement fails the status
// stays submitted.
func (s *Service) Accept(ctx context.Context, engagementID, actorID uuid.UUID) error {
	return s.settler.Release(ctx, engagementID, actorID)
}

// Dispute freezes the handover. No funds move; resumption requires external
// arbitration, which this module does not model.
func (s *Service) Dispute(ctx context.Context, engagementID, actorID uuid.UUID) error {
	eng, err := s.engagements.GetByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return faults.NotFound("engagement %s not found", engagementID)
		}
		return err
	}
	if actorID != eng.ClientID {
		return faults.Forbidden("actor %s is not the client of engagement %s", actorID, engagementID)
	}

	h, err := s.store.Get(ctx, engagementID)
	if err != nil {
		return err
	}
	if h == nil || h.Status == models.HandoverStatusNone {
		return faults.PreconditionFailed("no deliverables submitted for engagement %s", engagementID)
	}
	if h.Status != models.HandoverStatusSubmitted {
		return faults.PreconditionFailed("handover for engagement %s is %s, not submitted", engagementID, h.Status)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.DisputeTx(ctx, tx, engagementID)
	if err != nil {
		return err
	}
	if !ok {
		return faults.Conflict("handover for engagement %s changed state concurrently", engagementID)
	}

	if err := s.notifier.EnqueueTx(ctx, tx, models.Notification{
		RecipientID: eng.WorkerID,
		Type:        models.NotificationHandoverDisputed,
		Message:     fmt.Sprintf("The client disputed the deliverables for %q", eng.Title),
		RelatedID:   engagementID,
		RelatedType: models.RelatedTypeEngagement,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// detectFormat derives a file format from the URL extension, falling back
// to "unknown" when none can be parsed.
func detectFormat(fileURL string) string {
	base := fileURL
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	ext := strings.TrimPrefix(path.Ext(base), ".")
	if ext == "" {
		return models.FormatUnknown
	}
	return strings.ToLower(ext)
}
