package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// EventRepo implements EventRepository using PostgreSQL.
type EventRepo struct{ db *DB }

// NewEventRepo constructs an event repository.
func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db} }

const eventCols = `
e.id, e.title, e.description, e.start_at, e.end_at, e.privacy, e.owner_id, e.creator_id, e.created_at,
ARRAY(SELECT s.user_id::text FROM event_shares s WHERE s.event_id = e.id ORDER BY s.user_id)`

// Create inserts the event and its share list in one transaction.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const ins = `
INSERT INTO events (title, description, start_at, end_at, privacy, owner_id, creator_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, ins, e.Title, e.Description, e.Start, e.End, string(e.Privacy), e.OwnerID, e.CreatorID).
			Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("owner: %w", errs.ErrNotFound)
			}
			return err
		}
		return insertShares(ctx, tx, e.ID, e.SharedWith)
	})
}

// Get loads a single event by id.
func (r *EventRepo) Get(ctx context.Context, id int64) (*model.Event, error) {
	q := `SELECT ` + eventCols + ` FROM events e WHERE e.id=$1`
	e, err := scanEvent(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// Update locks the row, enforces the creator check and writes back what apply produced.
func (r *EventRepo) Update(
	ctx context.Context, id int64, actor uuid.UUID, apply func(*model.Event) error,
) (out *model.Event, err error) {
	sel := `SELECT ` + eventCols + ` FROM events e WHERE e.id=$1 FOR UPDATE OF e`
	const upd = `
UPDATE events SET title=$2, description=$3, start_at=$4, end_at=$5, privacy=$6
WHERE id=$1`
	const delShares = `DELETE FROM event_shares WHERE event_id=$1`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		e, err := scanEvent(tx.QueryRow(ctx, sel, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if e.CreatorID != actor {
			return errs.ErrForbidden
		}
		if err := apply(e); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, upd, e.ID, e.Title, e.Description, e.Start, e.End, string(e.Privacy)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, delShares, e.ID); err != nil {
			return err
		}
		if err := insertShares(ctx, tx, e.ID, e.SharedWith); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an event if actor created it. Shares go with it (ON DELETE CASCADE).
func (r *EventRepo) Delete(ctx context.Context, id int64, actor uuid.UUID) error {
	const sel = `SELECT creator_id FROM events WHERE id=$1 FOR UPDATE`
	const del = `DELETE FROM events WHERE id=$1`
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		var creator uuid.UUID
		if err := tx.QueryRow(ctx, sel, id).Scan(&creator); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if creator != actor {
			return errs.ErrForbidden
		}
		_, err := tx.Exec(ctx, del, id)
		return err
	})
}

// List returns events of q.OwnerID starting in [q.From, q.To), ordered by start.
// With q.ViewerID set only friends events and events shared with the viewer qualify,
// and share lists are not exposed.
func (r *EventRepo) List(ctx context.Context, q model.EventQuery) ([]model.Event, error) {
	const ownerWhere = `
FROM events e
WHERE e.owner_id=$1 AND e.start_at >= $2 AND e.start_at < $3
ORDER BY e.start_at ASC, e.id ASC`
	const viewerWhere = `
FROM events e
WHERE e.owner_id=$1 AND e.start_at >= $2 AND e.start_at < $3
  AND (e.privacy = 'friends'
       OR (e.privacy = 'specific_users'
           AND EXISTS (SELECT 1 FROM event_shares x WHERE x.event_id = e.id AND x.user_id = $4)))
ORDER BY e.start_at ASC, e.id ASC`

	var (
		rows pgx.Rows
		err  error
	)
	if q.ViewerID == uuid.Nil {
		rows, err = r.db.Pool.Query(ctx, `SELECT `+eventCols+ownerWhere, q.OwnerID, q.From, q.To)
	} else {
		rows, err = r.db.Pool.Query(ctx, `SELECT `+eventCols+viewerWhere, q.OwnerID, q.From, q.To, q.ViewerID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		if q.ViewerID != uuid.Nil {
			e.SharedWith = nil
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e       model.Event
		privacy string
		shares  []string
	)
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Start, &e.End, &privacy,
		&e.OwnerID, &e.CreatorID, &e.CreatedAt, &shares)
	if err != nil {
		return nil, err
	}
	e.Privacy = model.Privacy(privacy)
	for _, s := range shares {
		id, err := uuid.FromString(s)
		if err != nil {
			return nil, fmt.Errorf("event %d share %q: %w", e.ID, s, err)
		}
		e.SharedWith = append(e.SharedWith, id)
	}
	return &e, nil
}

func insertShares(ctx context.Context, tx pgx.Tx, eventID int64, users []uuid.UUID) error {
	if len(users) == 0 {
		return nil
	}
	const q = `
INSERT INTO event_shares (event_id, user_id)
SELECT $1, u FROM unnest($2::uuid[]) AS u
ON CONFLICT DO NOTHING`
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.String()
	}
	if _, err := tx.Exec(ctx, q, eventID, ids); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("shared user: %w", errs.ErrNotFound)
		}
		return err
	}
	return nil
}
