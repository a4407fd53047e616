package agreement

import (
	"context"
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

// Get returns the agreement for an engagement, or nil when none has been
// created yet. Absence is not an error.
func (r *Repository) Get(ctx context.Context, engagementID uuid.UUID) (*models.Agreement, error) {
	var a models.Agreement
	err := r.pool.QueryRow(ctx, `
		SELECT engagement_id, client_signed, worker_signed, client_signed_at, worker_signed_at, created_at
		FROM agreements WHERE engagement_id = $1
	`, engagementID).Scan(&a.EngagementID, &a.ClientSigned, &a.WorkerSigned, &a.ClientSignedAt, &a.WorkerSignedAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// SignClientTx records the client signature, creating the agreement row on
// first sign. Re-signing refreshes the timestamp only.
func (r *Repository) SignClientTx(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID) (*models.Agreement, error) {
	var a models.Agreement
	err := tx.QueryRow(ctx, `
		INSERT INTO agreements (engagement_id, client_signed, client_signed_at)
		VALUES ($1, TRUE, now())
		ON CONFLICT (engagement_id)
		DO UPDATE SET client_signed = TRUE, client_signed_at = now()
		RETURNING engagement_id, client_signed, worker_signed, client_signed_at, worker_signed_at, created_at
	`, engagementID).Scan(&a.EngagementID, &a.ClientSigned, &a.WorkerSigned, &a.ClientSignedAt, &a.WorkerSignedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SignWorkerTx records the worker signature, creating the agreement row on
// first sign.
func (r *Repository) SignWorkerTx(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID) (*models.Agreement, error) {
	var a models.Agreement
	err := tx.QueryRow(ctx, `
		INSERT INTO agreements (engagement_id, worker_signed, worker_signed_at)
		VALUES ($1, TRUE, now())
		ON CONFLICT (engagement_id)
		DO UPDATE SET worker_signed = TRUE, worker_signed_at = now()
		RETURNING engagement_id, client_signed, worker_signed, client_signed_at, worker_signed_at, created_at
	`, engagementID).Scan(&a.EngagementID, &a.ClientSigned, &a.WorkerSigned, &a.ClientSignedAt, &a.WorkerSignedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
