// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/authsync/internal/model"
)

// UserRepository provides access to identity-owned accounts.
type UserRepository interface {
	// Create inserts a new user and sets its timestamps from the store clock.
	// Returns errs.ErrAlreadyExists on a taken username.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdateEmail changes the email and returns the updated row.
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) (*model.User, error)
}
