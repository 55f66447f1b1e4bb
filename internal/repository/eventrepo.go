package repository

import (
	"context"

	"github.com/and161185/whosfree/internal/model"
	"github.com/gofrs/uuid/v5"
)

// EventRepository provides ownership-checked access to calendar events.
type EventRepository interface {
	// Create inserts the event with its share list and fills ID/CreatedAt.
	Create(ctx context.Context, e *model.Event) error
	// Get loads an event with its share list.
	Get(ctx context.Context, id int64) (*model.Event, error)
	// Update locks the event, checks that actor is its creator, lets apply mutate it
	// and writes it back, all in one transaction. apply errors abort the update.
	Update(ctx context.Context, id int64, actor uuid.UUID, apply func(*model.Event) error) (*model.Event, error)
	// Delete removes the event if actor is its creator.
	Delete(ctx context.Context, id int64, actor uuid.UUID) error
	// List returns events matching q ordered by start time.
	List(ctx context.Context, q model.EventQuery) ([]model.Event, error)
}
