package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/whosfree/internal/chat"
	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
	"github.com/and161185/whosfree/internal/repository"
	"github.com/and161185/whosfree/internal/validate"
	"github.com/gofrs/uuid/v5"
)

// MaxMessageLen bounds message content in characters.
const MaxMessageLen = 4096

// MessageService persists chat messages and manages room subscriptions.
type MessageService interface {
	// Send persists the message, then delivers it to current room subscribers.
	Send(ctx context.Context, in model.SendMessage) (*model.Message, error)
	// History returns a room's messages in insertion order.
	History(ctx context.Context, room string) ([]model.Message, error)
	// Conversation returns both directions between a and b.
	Conversation(ctx context.Context, a, b uuid.UUID) ([]model.Message, error)
	// Join subscribes sub to the room shared by user and peer and replays its history.
	Join(ctx context.Context, user, peer uuid.UUID, sub chat.Subscriber) (*chat.Session, error)
	// MarkRead flags messages from peer to reader as read.
	MarkRead(ctx context.Context, reader, peer uuid.UUID) (int64, error)
	// UnreadCount returns how many messages addressed to reader are unread.
	UnreadCount(ctx context.Context, reader uuid.UUID) (int64, error)
}

type MessageServiceImpl struct {
	repo  repository.MessageRepository
	users repository.UserRepository
	hub   *chat.Hub
}

// NewMessageService constructs MessageService delivering through hub.
func NewMessageService(repo repository.MessageRepository, users repository.UserRepository, hub *chat.Hub) *MessageServiceImpl {
	return &MessageServiceImpl{repo: repo, users: users, hub: hub}
}

// Send validates the pair and content. A given room must name exactly the sender/recipient pair.
func (s *MessageServiceImpl) Send(ctx context.Context, in model.SendMessage) (*model.Message, error) {
	room := model.DirectRoom(in.SenderID, in.RecipientID)
	err := validate.Chain(
		validate.Check(in.SenderID != uuid.Nil && in.RecipientID != uuid.Nil, "sender and recipient are required"),
		validate.Check(in.SenderID != in.RecipientID, "cannot message yourself"),
		validate.Required("content", in.Content),
		validate.MaxLen("content", in.Content, MaxMessageLen),
		validate.Check(in.Room == "" || in.Room == room, "room does not match sender and recipient"),
	)
	if err != nil {
		return nil, err
	}

	m := &model.Message{
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Content:     in.Content,
		Room:        room,
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, err
	}
	cp := *m
	s.hub.Broadcast(room, chat.Envelope{Type: chat.TypeMessage, Message: &cp}, nil)
	return m, nil
}

func (s *MessageServiceImpl) History(ctx context.Context, room string) ([]model.Message, error) {
	if strings.TrimSpace(room) == "" {
		return nil, fmt.Errorf("%w: room is required", errs.ErrValidation)
	}
	return s.repo.History(ctx, room)
}

func (s *MessageServiceImpl) Conversation(ctx context.Context, a, b uuid.UUID) ([]model.Message, error) {
	return s.repo.Conversation(ctx, a, b)
}

// Join checks that peer exists and subscribes sub to their shared room.
func (s *MessageServiceImpl) Join(ctx context.Context, user, peer uuid.UUID, sub chat.Subscriber) (*chat.Session, error) {
	if user == peer {
		return nil, fmt.Errorf("%w: cannot chat with yourself", errs.ErrValidation)
	}
	if _, err := s.users.GetByID(ctx, peer); err != nil {
		return nil, err
	}
	room := model.DirectRoom(user, peer)
	sess := chat.NewSession(s.hub, room, user, sub, func(ctx context.Context) ([]model.Message, error) {
		return s.repo.History(ctx, room)
	})
	if err := sess.Join(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *MessageServiceImpl) MarkRead(ctx context.Context, reader, peer uuid.UUID) (int64, error) {
	return s.repo.MarkRead(ctx, reader, peer)
}

func (s *MessageServiceImpl) UnreadCount(ctx context.Context, reader uuid.UUID) (int64, error) {
	return s.repo.UnreadCount(ctx, reader)
}
