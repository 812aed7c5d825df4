package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/authsync/internal/errs"
	"github.com/and161185/authsync/internal/model"
	"github.com/and161185/authsync/internal/repository"
)

// ProjectionRepo implements ProjectionRepository using PostgreSQL.
type ProjectionRepo struct{ db *DB }

// NewProjectionRepo constructs a projection repository.
func NewProjectionRepo(db *DB) *ProjectionRepo { return &ProjectionRepo{db: db} }

var _ repository.ProjectionRepository = (*ProjectionRepo)(nil)

// Seen checks the ledger for eventID.
func (r *ProjectionRepo) Seen(ctx context.Context, eventID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id=$1)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, eventID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ApplyOnce inserts the ledger row and upserts the user in one transaction.
// A conflicting ledger row means another delivery already applied the event.
// The upsert only moves a row forward in source time, so out-of-order
// deliveries converge on the newest snapshot.
func (r *ProjectionRepo) ApplyOnce(ctx context.Context, ev model.ProcessedEvent, u model.ProjectedUser) (bool, error) {
	const ins = `
INSERT INTO processed_events (event_id, event_type, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (event_id) DO NOTHING`
	const upsert = `
INSERT INTO users (id, username, email, source_updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET username = EXCLUDED.username, email = EXCLUDED.email, source_updated_at = EXCLUDED.source_updated_at
WHERE users.source_updated_at < EXCLUDED.source_updated_at`

	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, ins, ev.EventID, ev.EventType, ev.ProcessedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errRollback
		}
		_, err = tx.Exec(ctx, upsert, u.ID, u.Username, u.Email, u.SourceUpdatedAt)
		return err
	})
	switch {
	case errors.Is(err, errRollback):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// GetUser selects a projected user.
func (r *ProjectionRepo) GetUser(ctx context.Context, id uuid.UUID) (*model.ProjectedUser, error) {
	const q = `SELECT id, username, email, source_updated_at FROM users WHERE id=$1`
	var u model.ProjectedUser
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.Email, &u.SourceUpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
