package rating

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/workbridge/backend/internal/faults"
	"github.com/workbridge/backend/internal/models"
)

// Store is the minimal rating repository interface for the service.
type Store interface {
	Insert(ctx context.Context, rt *models.Rating) error
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Rating, error)
	ListByTargetUser(ctx context.Context, targetUserID uuid.UUID) ([]*models.Rating, error)
}

// EngagementGetter resolves the engagement being rated.
type EngagementGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error)
}

// Service collects optional post-settlement ratings. Fully decoupled from
// settlement: a skipped, late, or never-submitted rating never touches
// already-released funds.
type Service struct {
	store       Store
	engagements EngagementGetter
}

func NewService(store Store, engagements EngagementGetter) *Service {
	return &Service{store: store, engagements: engagements}
}

// Submit records one rating of the counter-party. The rater role is derived
// from which party the actor is; a second rating for the same
// (engagement, role) is rejected, never overwritten.
func (s *Service) Submit(ctx context.Context, engagementID, actorID uuid.UUID, stars int, text string) (*models.Rating, error) {
	eng, err := s.engagements.GetByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, faults.NotFound("engagement %s not found", engagementID)
		}
		return nil, err
	}

	var role string
	var target uuid.UUID
	switch actorID {
	case eng.ClientID:
		role, target = models.RaterRoleClient, eng.WorkerID
	case eng.WorkerID:
		role, target = models.RaterRoleWorker, eng.ClientID
	default:
		return nil, faults.Forbidden("actor %s is not a party to engagement %s", actorID, engagementID)
	}

	if eng.Status != models.EngagementStatusClosed {
		return nil, faults.PreconditionFailed("engagement %s is not settled yet", engagementID)
	}
	if stars < models.RatingStarsMin || stars > models.RatingStarsMax {
		return nil, faults.Validation("stars must be between %d and %d, got %d", models.RatingStarsMin, models.RatingStarsMax, stars)
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < models.RatingTextMinChars {
		return nil, faults.Validation("review text must be at least %d characters", models.RatingTextMinChars)
	}

	rt := &models.Rating{
		ID:           uuid.New(),
		EngagementID: engagementID,
		RaterRole:    role,
		RaterID:      actorID,
		TargetUserID: target,
		Stars:        stars,
		ReviewText:   text,
	}
	if err := s.store.Insert(ctx, rt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, faults.Conflict("the %s already rated engagement %s", role, engagementID)
		}
		return nil, err
	}
	return rt, nil
}

// ListForEngagement returns the up-to-two ratings of an engagement.
func (s *Service) ListForEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Rating, error) {
	return s.store.ListByEngagement(ctx, engagementID)
}

// ListForUser returns all ratings received by a user.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Rating, error) {
	return s.store.ListByTargetUser(ctx, userID)
}
