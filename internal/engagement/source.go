package engagement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/workbridge/backend/internal/models"
)

// Source is the capability an engagement kind exposes to the settlement
// engine: closing the parent listing so it cannot be re-awarded or receive
// new bids/entries. One generic engine, two thin adapters.
type Source interface {
	Kind() string
	CloseSubject(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID) error
}

// ProjectSource closes open-bid projects.
type ProjectSource struct{}

func (ProjectSource) Kind() string { return models.EngagementKindProject }

func (ProjectSource) CloseSubject(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE projects SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status <> 'completed'
	`, subjectID)
	return err
}

// ContestSource closes prize contests.
type ContestSource struct{}

func (ContestSource) Kind() string { return models.EngagementKindContest }

func (ContestSource) CloseSubject(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE contests SET status = 'closed', updated_at = now()
		WHERE id = $1 AND status <> 'closed'
	`, subjectID)
	return err
}

// Sources maps engagement kinds to their close capability.
func Sources() map[string]Source {
	return map[string]Source{
		models.EngagementKindProject: ProjectSource{},
		models.EngagementKindContest: ContestSource{},
	}
}

var _ Source = ProjectSource{}
var _ Source = ContestSource{}
