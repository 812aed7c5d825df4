package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/authsync/internal/model"
)

// ProjectionRepository stores the projected users together with the ledger
// of processed event ids.
type ProjectionRepository interface {
	// Seen reports whether eventID is already in the ledger.
	Seen(ctx context.Context, eventID uuid.UUID) (bool, error)
	// ApplyOnce records ev and upserts u in one transaction. It returns
	// false without touching the projection when ev was already recorded.
	ApplyOnce(ctx context.Context, ev model.ProcessedEvent, u model.ProjectedUser) (bool, error)
	// GetUser loads a projected user.
	GetUser(ctx context.Context, id uuid.UUID) (*model.ProjectedUser, error)
}
