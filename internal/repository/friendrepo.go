package repository

import (
	"context"

	"github.com/and161185/whosfree/internal/model"
	"github.com/gofrs/uuid/v5"
)

// FriendshipRepository stores one row per unordered pair of users.
type FriendshipRepository interface {
	// Create inserts a pending row; any existing row for the pair yields errs.ErrAlreadyExists.
	Create(ctx context.Context, f *model.Friendship) error
	// Accept marks a pending request accepted if by is its addressee.
	Accept(ctx context.Context, id int64, by uuid.UUID) (*model.Friendship, error)
	// DeletePending removes a pending request if by is its addressee.
	DeletePending(ctx context.Context, id int64, by uuid.UUID) error
	// ListFriends returns the accepted friends of userID.
	ListFriends(ctx context.Context, userID uuid.UUID) ([]model.UserSummary, error)
	// ListPending returns pending requests addressed to (incoming) or sent by userID.
	ListPending(ctx context.Context, userID uuid.UUID, incoming bool) ([]model.FriendRequest, error)
	// AreFriends reports whether an accepted row exists for the pair.
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}
