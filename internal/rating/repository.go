package rating

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workbridge/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert adds a rating. The ratings table carries a unique constraint on
// (engagement_id, rater_role); a duplicate surfaces as pg error 23505.
func (r *Repository) Insert(ctx context.Context, rt *models.Rating) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO ratings (id, engagement_id, rater_role, rater_id, target_user_id, stars, review_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, rt.ID, rt.EngagementID, rt.RaterRole, rt.RaterID, rt.TargetUserID, rt.Stars, rt.ReviewText).Scan(&rt.CreatedAt)
}

func (r *Repository) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]*models.Rating, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, engagement_id, rater_role, rater_id, target_user_id, stars, review_text, created_at
		FROM ratings WHERE engagement_id = $1 ORDER BY created_at ASC
	`, engagementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRatings(rows)
}

func (r *Repository) ListByTargetUser(ctx context.Context, targetUserID uuid.UUID) ([]*models.Rating, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, engagement_id, rater_role, rater_id, target_user_id, stars, review_text, created_at
		FROM ratings WHERE target_user_id = $1 ORDER BY created_at DESC
	`, targetUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRatings(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRatings(rows rowScanner) ([]*models.Rating, error) {
	var list []*models.Rating
	for rows.Next() {
		var rt models.Rating
		if err := rows.Scan(&rt.ID, &rt.EngagementID, &rt.RaterRole, &rt.RaterID, &rt.TargetUserID, &rt.Stars, &rt.ReviewText, &rt.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &rt)
	}
	return list, rows.Err()
}
