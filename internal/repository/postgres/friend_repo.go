package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// FriendRepo implements FriendshipRepository using PostgreSQL.
// Each friendship is a single row keyed by the canonical (user_lo, user_hi) pair.
type FriendRepo struct{ db *DB }

// NewFriendRepo constructs a friendship repository.
func NewFriendRepo(db *DB) *FriendRepo { return &FriendRepo{db: db} }

// Create inserts a pending request. The pair is unique regardless of direction.
func (r *FriendRepo) Create(ctx context.Context, f *model.Friendship) error {
	const q = `
INSERT INTO friendships (requester_id, addressee_id, user_lo, user_hi, status)
VALUES ($1, $2, $3, $4, 'pending')
RETURNING id, created_at`
	lo, hi := f.Pair()
	err := r.db.Pool.QueryRow(ctx, q, f.RequesterID, f.AddresseeID, lo, hi).Scan(&f.ID, &f.CreatedAt)
	switch {
	case err == nil:
		f.Status = model.FriendPending
		return nil
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return fmt.Errorf("addressee: %w", errs.ErrNotFound)
	default:
		return err
	}
}

// Accept flips a pending request to accepted. Only the addressee may do so.
func (r *FriendRepo) Accept(ctx context.Context, id int64, by uuid.UUID) (out *model.Friendship, err error) {
	const upd = `UPDATE friendships SET status='accepted', responded_at=$2 WHERE id=$1`
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		f, err := lockPending(ctx, tx, id, by)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, upd, id, now); err != nil {
			return err
		}
		f.Status = model.FriendAccepted
		f.RespondedAt = &now
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePending removes a request that is still pending. Only the addressee may do so.
func (r *FriendRepo) DeletePending(ctx context.Context, id int64, by uuid.UUID) error {
	const del = `DELETE FROM friendships WHERE id=$1`
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockPending(ctx, tx, id, by); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, del, id)
		return err
	})
}

// lockPending loads and locks request id, checking addressee and status.
func lockPending(ctx context.Context, tx pgx.Tx, id int64, by uuid.UUID) (*model.Friendship, error) {
	const sel = `
SELECT requester_id, addressee_id, status, created_at
FROM friendships WHERE id=$1 FOR UPDATE`
	f := model.Friendship{ID: id}
	var status string
	if err := tx.QueryRow(ctx, sel, id).Scan(&f.RequesterID, &f.AddresseeID, &status, &f.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	f.Status = model.FriendStatus(status)
	if f.AddresseeID != by {
		return nil, errs.ErrForbidden
	}
	if f.Status != model.FriendPending {
		return nil, fmt.Errorf("%w: request is %s", errs.ErrInvalidState, f.Status)
	}
	return &f, nil
}

// ListFriends returns accepted friends of userID from either side of the row.
func (r *FriendRepo) ListFriends(ctx context.Context, userID uuid.UUID) ([]model.UserSummary, error) {
	const q = `
SELECT u.id, u.username
FROM friendships f
JOIN users u ON u.id = CASE WHEN f.requester_id = $1 THEN f.addressee_id ELSE f.requester_id END
WHERE (f.requester_id = $1 OR f.addressee_id = $1) AND f.status = 'accepted'
ORDER BY u.username ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UserSummary
	for rows.Next() {
		var s model.UserSummary
		if err := rows.Scan(&s.ID, &s.Username); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListPending returns pending requests addressed to userID (incoming) or sent by it.
func (r *FriendRepo) ListPending(ctx context.Context, userID uuid.UUID, incoming bool) ([]model.FriendRequest, error) {
	const base = `
SELECT f.id, f.created_at, rq.id, rq.username, ad.id, ad.username
FROM friendships f
JOIN users rq ON rq.id = f.requester_id
JOIN users ad ON ad.id = f.addressee_id
WHERE f.status = 'pending' AND `
	q := base + `f.requester_id = $1 ORDER BY f.created_at ASC`
	if incoming {
		q = base + `f.addressee_id = $1 ORDER BY f.created_at ASC`
	}
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FriendRequest
	for rows.Next() {
		var fr model.FriendRequest
		if err := rows.Scan(&fr.ID, &fr.CreatedAt, &fr.From.ID, &fr.From.Username, &fr.To.ID, &fr.To.Username); err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

// AreFriends reports whether the pair has an accepted row.
func (r *FriendRepo) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM friendships WHERE user_lo=$1 AND user_hi=$2 AND status='accepted'
)`
	lo, hi := model.OrderedPair(a, b)
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, lo, hi).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
