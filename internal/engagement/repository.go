package engagement

import (
	"context"

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

// Create inserts an engagement outside any caller transaction. Project
// awards arrive through this path from the bidding surface, which is the
// only caller: it supplies a fresh id, kind "project", the client and the
// awarded bidder, the bid amount as the immutable AmountCents snapshot, and
// status "active". Contest awards never use this; they go through CreateTx
// inside the award transaction.
func (r *Repository) Create(ctx context.Context, e *models.Engagement) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO engagements (id, kind, subject_id, client_id, worker_id, amount_cents, title, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, e.ID, e.Kind, e.SubjectID, e.ClientID, e.WorkerID, e.AmountCents, e.Title, e.Status).Scan(&e.CreatedAt)
}

// CreateTx inserts an engagement inside the given transaction (contest
// awards create the engagement atomically with the entry flip).
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, e *models.Engagement) error {
	return tx.QueryRow(ctx, `
		INSERT INTO engagements (id, kind, subject_id, client_id, worker_id, amount_cents, title, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, e.ID, e.Kind, e.SubjectID, e.ClientID, e.WorkerID, e.AmountCents, e.Title, e.Status).Scan(&e.CreatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Engagement, error) {
	var e models.Engagement
	err := r.pool.QueryRow(ctx, `
		SELECT id, kind, subject_id, client_id, worker_id, amount_cents, title, status, created_at, closed_at
		FROM engagements WHERE id = $1
	`, id).Scan(&e.ID, &e.Kind, &e.SubjectID, &e.ClientID, &e.WorkerID, &e.AmountCents, &e.Title, &e.Status, &e.CreatedAt, &e.ClosedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// MarkClosedTx flips the engagement to closed, conditional on it still
// being active. Returns false when the row was already closed.
func (r *Repository) MarkClosedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE engagements SET status = 'closed', closed_at = now()
		WHERE id = $1 AND status = 'active'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ListByParty(ctx context.Context, userID uuid.UUID) ([]*models.Engagement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, subject_id, client_id, worker_id, amount_cents, title, status, created_at, closed_at
		FROM engagements WHERE client_id = $1 OR worker_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Engagement
	for rows.Next() {
		var e models.Engagement
		if err := rows.Scan(&e.ID, &e.Kind, &e.SubjectID, &e.ClientID, &e.WorkerID, &e.AmountCents, &e.Title, &e.Status, &e.CreatedAt, &e.ClosedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
