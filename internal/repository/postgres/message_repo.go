package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// MessageRepo implements MessageRepository using PostgreSQL.
type MessageRepo struct{ db *DB }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(db *DB) *MessageRepo { return &MessageRepo{db: db} }

const messageCols = `id, sender_id, recipient_id, content, sent_at, read, room`

// Insert appends m; id and sent_at come from the database.
func (r *MessageRepo) Insert(ctx context.Context, m *model.Message) error {
	const q = `
INSERT INTO messages (sender_id, recipient_id, content, room)
VALUES ($1, $2, $3, $4)
RETURNING id, sent_at`
	err := r.db.Pool.QueryRow(ctx, q, m.SenderID, m.RecipientID, m.Content, m.Room).Scan(&m.ID, &m.SentAt)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("recipient: %w", errs.ErrNotFound)
	}
	return err
}

// History returns all messages of room in insertion order.
func (r *MessageRepo) History(ctx context.Context, room string) ([]model.Message, error) {
	const q = `SELECT ` + messageCols + `
FROM messages WHERE room=$1
ORDER BY sent_at ASC, id ASC`
	rows, err := r.db.Pool.Query(ctx, q, room)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// Conversation returns both directions between a and b in insertion order.
func (r *MessageRepo) Conversation(ctx context.Context, a, b uuid.UUID) ([]model.Message, error) {
	const q = `SELECT ` + messageCols + `
FROM messages
WHERE (sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1)
ORDER BY sent_at ASC, id ASC`
	rows, err := r.db.Pool.Query(ctx, q, a, b)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// MarkRead flags everything sender sent to reader as read.
func (r *MessageRepo) MarkRead(ctx context.Context, reader, sender uuid.UUID) (int64, error) {
	const q = `UPDATE messages SET read=true WHERE recipient_id=$1 AND sender_id=$2 AND NOT read`
	tag, err := r.db.Pool.Exec(ctx, q, reader, sender)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UnreadCount counts unread messages addressed to reader.
func (r *MessageRepo) UnreadCount(ctx context.Context, reader uuid.UUID) (int64, error) {
	const q = `SELECT count(*) FROM messages WHERE recipient_id=$1 AND NOT read`
	var n int64
	if err := r.db.Pool.QueryRow(ctx, q, reader).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func collectMessages(rows pgx.Rows) ([]model.Message, error) {
	defer rows.Close()
	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.SentAt, &m.Read, &m.Room); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
