package service

import (
	"context"
	"fmt"

	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
	"github.com/and161185/whosfree/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// FriendService manages the friendship graph.
type FriendService interface {
	// Request sends a friend request from one user to another.
	Request(ctx context.Context, from, to uuid.UUID) (*model.Friendship, error)
	// Accept accepts a pending request addressed to by.
	Accept(ctx context.Context, requestID int64, by uuid.UUID) (*model.Friendship, error)
	// DeletePending declines a pending request addressed to by.
	DeletePending(ctx context.Context, requestID int64, by uuid.UUID) error
	// ListAcceptedFriends returns the user's friends.
	ListAcceptedFriends(ctx context.Context, user uuid.UUID) ([]model.UserSummary, error)
	// ListPendingIncoming returns requests waiting for the user's answer.
	ListPendingIncoming(ctx context.Context, user uuid.UUID) ([]model.FriendRequest, error)
	// ListPendingOutgoing returns requests the user sent that are still pending.
	ListPendingOutgoing(ctx context.Context, user uuid.UUID) ([]model.FriendRequest, error)
	// AreFriends reports whether a and b have an accepted friendship.
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type FriendServiceImpl struct {
	repo repository.FriendshipRepository
}

// NewFriendService constructs FriendService.
func NewFriendService(repo repository.FriendshipRepository) *FriendServiceImpl {
	return &FriendServiceImpl{repo: repo}
}

// Request creates a pending row for the unordered pair. Any existing row, in either
// direction and any state, yields errs.ErrAlreadyExists.
func (s *FriendServiceImpl) Request(ctx context.Context, from, to uuid.UUID) (*model.Friendship, error) {
	if from == uuid.Nil || to == uuid.Nil {
		return nil, fmt.Errorf("%w: empty user id", errs.ErrValidation)
	}
	if from == to {
		return nil, fmt.Errorf("%w: cannot befriend yourself", errs.ErrValidation)
	}
	f := &model.Friendship{RequesterID: from, AddresseeID: to}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Accept flips a pending request to accepted.
func (s *FriendServiceImpl) Accept(ctx context.Context, requestID int64, by uuid.UUID) (*model.Friendship, error) {
	if requestID <= 0 {
		return nil, errs.ErrNotFound
	}
	return s.repo.Accept(ctx, requestID, by)
}

// DeletePending removes a pending request.
func (s *FriendServiceImpl) DeletePending(ctx context.Context, requestID int64, by uuid.UUID) error {
	if requestID <= 0 {
		return errs.ErrNotFound
	}
	return s.repo.DeletePending(ctx, requestID, by)
}

func (s *FriendServiceImpl) ListAcceptedFriends(ctx context.Context, user uuid.UUID) ([]model.UserSummary, error) {
	return s.repo.ListFriends(ctx, user)
}

func (s *FriendServiceImpl) ListPendingIncoming(ctx context.Context, user uuid.UUID) ([]model.FriendRequest, error) {
	return s.repo.ListPending(ctx, user, true)
}

func (s *FriendServiceImpl) ListPendingOutgoing(ctx context.Context, user uuid.UUID) ([]model.FriendRequest, error) {
	return s.repo.ListPending(ctx, user, false)
}

func (s *FriendServiceImpl) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if a == b {
		return false, nil
	}
	return s.repo.AreFriends(ctx, a, b)
}
