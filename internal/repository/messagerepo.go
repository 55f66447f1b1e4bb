package repository

import (
	"context"

	"github.com/and161185/whosfree/internal/model"
	"github.com/gofrs/uuid/v5"
)

// MessageRepository is the append-only chat log.
type MessageRepository interface {
	// Insert stores m and fills ID and SentAt from the database clock.
	Insert(ctx context.Context, m *model.Message) error
	// History returns all messages of a room in insertion order.
	History(ctx context.Context, room string) ([]model.Message, error)
	// Conversation returns messages exchanged between a and b in insertion order.
	Conversation(ctx context.Context, a, b uuid.UUID) ([]model.Message, error)
	// MarkRead flags unread messages from sender to reader as read and returns how many changed.
	MarkRead(ctx context.Context, reader, sender uuid.UUID) (int64, error)
	// UnreadCount returns the number of unread messages addressed to reader.
	UnreadCount(ctx context.Context, reader uuid.UUID) (int64, error)
}
