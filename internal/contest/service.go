package contest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/workbridge/backend/internal/faults"
	"github.com/workbridge/backend/internal/models"
)

// Store is the minimal contest repository interface for the service.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetContest(ctx context.Context, id uuid.UUID) (*Contest, error)
	CreateEntry(ctx context.Context, e *models.ContestEntry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*models.ContestEntry, error)
	ListEntriesByContest(ctx context.Context, contestID uuid.UUID) ([]*models.ContestEntry, error)
	RejectEntryTx(ctx context.Context, tx pgx.Tx, entryID uuid.UUID) (bool, error)
	AwardEntryTx(ctx context.Context, tx pgx.Tx, entryID, contestID uuid.UUID) (bool, error)
}

// EngagementCreator inserts the engagement inside the award transaction.
type EngagementCreator interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.Engagement) error
}

// Notifier enqueues a notification inside the mutation transaction.
type Notifier interface {
	EnqueueTx(ctx context.Context, tx pgx.Tx, n models.Notification) error
}

// Service runs the per-entry contest sub-workflow. Entries are independent
// of the handover state machine but gate which participant may enter
// agreement creation: only the awarded entry's participant becomes the
// engagement worker, and award is exclusive per contest.
type Service struct {
	store       Store
	engagements EngagementCreator
	notifier    Notifier
}

func NewService(store Store, engagements EngagementCreator, notifier Notifier) *Service {
	return &Service{store: store, engagements: engagements, notifier: notifier}
}

// SubmitEntry registers the actor as a participant of an open contest.
func (s *Service) SubmitEntry(ctx context.Context, contestID, actorID uuid.UUID) (*models.ContestEntry, error) {
	c, err := s.store.GetContest(ctx, contestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, faults.NotFound("contest %s not found", contestID)
		}
		return nil, err
	}
	if c.Status != "open" {
		return nil, faults.PreconditionFailed("contest %s is not open for entries", contestID)
	}
	if actorID == c.OwnerID {
		return nil, faults.Forbidden("the contest owner cannot enter their own contest")
	}
	entry := &models.ContestEntry{
		ID:            uuid.New(),
		ContestID:     contestID,
		ParticipantID: actorID,
		Status:        models.ContestEntryStatusActive,
	}
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RejectEntry marks an entry rejected. Only the contest owner may reject.
func (s *Service) RejectEntry(ctx context.Context, entryID, actorID uuid.UUID) error {
	entry, c, err := s.loadEntryAndContest(ctx, entryID)
	if err != nil {
		return err
	}
	if actorID != c.OwnerID {
		return faults.Forbidden("actor %s is not the owner of contest %s", actorID, c.ID)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.RejectEntryTx(ctx, tx, entryID)
	if err != nil {
		return err
	}
	if !ok {
		return faults.Conflict("entry %s is no longer active", entryID)
	}

	if err := s.notifier.EnqueueTx(ctx, tx, models.Notification{
		RecipientID: entry.ParticipantID,
		Type:        models.NotificationEntryRejected,
		Message:     fmt.Sprintf("Your entry to %q was rejected", c.Title),
		RelatedID:   entryID,
		RelatedType: models.RelatedTypeContestEntry,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AwardEntry marks the entry awarded and creates the engagement that
// carries the prize snapshot, in one transaction. At most one entry per
// contest can ever win; the loser of a concurrent race gets Conflict.
func (s *Service) AwardEntry(ctx context.Context, entryID, actorID uuid.UUID) (*models.Engagement, error) {
	entry, c, err := s.loadEntryAndContest(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if actorID != c.OwnerID {
		return nil, faults.Forbidden("actor %s is not the owner of contest %s", actorID, c.ID)
	}
	if entry.Status != models.ContestEntryStatusActive {
		return nil, faults.PreconditionFailed("entry %s is %s, not active", entryID, entry.Status)
	}
	if c.PrizeCents <= 0 {
		return nil, faults.Validation("contest %s has a non-positive prize", c.ID)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := s.store.AwardEntryTx(ctx, tx, entryID, entry.ContestID)
	if err != nil {
		if isAwardedTwice(err) {
			return nil, faults.Conflict("contest %s already has an awarded entry", entry.ContestID)
		}
		return nil, err
	}
	if !ok {
		return nil, faults.Conflict("contest %s already has an awarded entry", entry.ContestID)
	}

	eng := &models.Engagement{
		ID:          uuid.New(),
		Kind:        models.EngagementKindContest,
		SubjectID:   entry.ContestID,
		ClientID:    c.OwnerID,
		WorkerID:    entry.ParticipantID,
		AmountCents: c.PrizeCents,
		Title:       c.Title,
		Status:      models.EngagementStatusActive,
	}
	if err := s.engagements.CreateTx(ctx, tx, eng); err != nil {
		return nil, err
	}

	if err := s.notifier.EnqueueTx(ctx, tx, models.Notification{
		RecipientID: entry.ParticipantID,
		Type:        models.NotificationEntryAwarded,
		Message:     fmt.Sprintf("Your entry won %q, sign the agreement to proceed", c.Title),
		RelatedID:   entryID,
		RelatedType: models.RelatedTypeContestEntry,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isAwardedTwice(err) {
			return nil, faults.Conflict("contest %s already has an awarded entry", entry.ContestID)
		}
		return nil, err
	}
	return eng, nil
}

// isAwardedTwice reports whether err is the unique-index violation raised
// when a concurrent transaction awarded a sibling entry first. At read
// committed both racers can pass the awarded-sibling subquery; the partial
// unique index on (contest_id) WHERE status = 'awarded' stops the loser,
// which may surface at the UPDATE or at commit.
func isAwardedTwice(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ListEntries returns all entries of a contest.
func (s *Service) ListEntries(ctx context.Context, contestID uuid.UUID) ([]*models.ContestEntry, error) {
	return s.store.ListEntriesByContest(ctx, contestID)
}

func (s *Service) loadEntryAndContest(ctx context.Context, entryID uuid.UUID) (*models.ContestEntry, *Contest, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, faults.NotFound("contest entry %s not found", entryID)
		}
		return nil, nil, err
	}
	c, err := s.store.GetContest(ctx, entry.ContestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, faults.NotFound("contest %s not found", entry.ContestID)
		}
		return nil, nil, err
	}
	return entry, c, nil
}
