package contest

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workbridge/backend/internal/models"
)

// Contest is the prize-contest listing row as far as this workflow needs
// it: the owner, the prize snapshot source, and the open/closed flag.
type Contest struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Title      string
	PrizeCents int64
	Status     string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) GetContest(ctx context.Context, id uuid.UUID) (*Contest, error) {
	var c Contest
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, title, prize_cents, status
		FROM contests WHERE id = $1
	`, id).Scan(&c.ID, &c.OwnerID, &c.Title, &c.PrizeCents, &c.Status)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) CreateEntry(ctx context.Context, e *models.ContestEntry) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO contest_entries (id, contest_id, participant_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, e.ID, e.ContestID, e.ParticipantID, e.Status).Scan(&e.CreatedAt)
}

func (r *Repository) GetEntry(ctx context.Context, id uuid.UUID) (*models.ContestEntry, error) {
	var e models.ContestEntry
	err := r.pool.QueryRow(ctx, `
		SELECT id, contest_id, participant_id, status, created_at
		FROM contest_entries WHERE id = $1
	`, id).Scan(&e.ID, &e.ContestID, &e.ParticipantID, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) ListEntriesByContest(ctx context.Context, contestID uuid.UUID) ([]*models.ContestEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contest_id, participant_id, status, created_at
		FROM contest_entries WHERE contest_id = $1 ORDER BY created_at ASC
	`, contestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ContestEntry
	for rows.Next() {
		var e models.ContestEntry
		if err := rows.Scan(&e.ID, &e.ContestID, &e.ParticipantID, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// RejectEntryTx flips active -> rejected. Returns false when the entry is
// no longer active.
func (r *Repository) RejectEntryTx(ctx context.Context, tx pgx.Tx, entryID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE contest_entries SET status = 'rejected'
		WHERE id = $1 AND status = 'active'
	`, entryID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AwardEntryTx flips active -> awarded, guarded so two concurrent awards on
// sibling entries of the same contest cannot both succeed. The table also
// carries a partial unique index on (contest_id) WHERE status = 'awarded'
// as a backstop.
func (r *Repository) AwardEntryTx(ctx context.Context, tx pgx.Tx, entryID, contestID uuid.UUID) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE contest_entries SET status = 'awarded'
		WHERE id = $1 AND status = 'active'
		AND NOT EXISTS (
			SELECT 1 FROM contest_entries WHERE contest_id = $2 AND status = 'awarded'
		)
	`, entryID, contestID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
