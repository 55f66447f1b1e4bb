// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/whosfree/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to accounts.
type UserRepository interface {
	// Create inserts a new user; a taken username or email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by (normalized) email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Search returns users whose username contains query, case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]model.UserSummary, error)
}
