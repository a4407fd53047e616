package handover

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workbridge/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Get returns the handover for an engagement, or nil when the worker has
// never submitted (status none).
func (r *Repository) Get(ctx context.Context, engagementID uuid.UUID) (*models.Handover, error) {
	var h models.Handover
	var files []byte
	err := r.pool.QueryRow(ctx, `
		SELECT engagement_id, status, files, submitted_at, accepted_at
		FROM handovers WHERE engagement_id = $1
	`, engagementID).Scan(&h.EngagementID, &h.Status, &files, &h.SubmittedAt, &h.AcceptedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(files, &h.Files); err != nil {
		return nil, err
	}
	return &h, nil
}

// ReplaceFilesTx upserts the handover into submitted state with a wholesale
// new file list. The update only applies while the handover is still
// submitted, so an accepted or disputed row is never touched; returns false
// in that case.
func (r *Repository) ReplaceFilesTx(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID, files []models.HandoverFile) (bool, error) {
	payload, err := json.Marshal(files)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO handovers (engagement_id, status, files, submitted_at)
		VALUES ($1, 'submitted', $2, now())
		ON CONFLICT (engagement_id)
		DO UPDATE SET files = EXCLUDED.files, status = 'submitted', submitted_at = now()
		WHERE handovers.status = 'submitted'
	`, engagementID, payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AcceptTx flips submitted -> accepted, conditional on the previously-read
// status still holding at write time. Returns false when the row is no
// longer submitted (lost race or wrong state).
func (r *Repository) AcceptTx(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE handovers SET status = 'accepted', accepted_at = now()
		WHERE engagement_id = $1 AND status = 'submitted'
	`, engagementID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DisputeTx flips submitted -> disputed under the same conditional-write
// rule as AcceptTx.
func (r *Repository) DisputeTx(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE handovers SET status = 'disputed'
		WHERE engagement_id = $1 AND status = 'submitted'
	`, engagementID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
