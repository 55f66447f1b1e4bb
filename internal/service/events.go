package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/and161185/whosfree/internal/calendar"
	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
	"github.com/and161185/whosfree/internal/repository"
	"github.com/and161185/whosfree/internal/validate"
	"github.com/gofrs/uuid/v5"
)

// Event field limits.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 2000
	MaxSharedWith     = 100
	MaxRange          = 366 * 24 * time.Hour
)

// EventService manages calendar events and their visibility.
type EventService interface {
	// Create stores a new event on owner's calendar.
	Create(ctx context.Context, owner uuid.UUID, e model.Event) (*model.Event, error)
	// Update applies patch if by is the creator.
	Update(ctx context.Context, id int64, by uuid.UUID, patch model.EventPatch) (*model.Event, error)
	// Delete removes the event if by is the creator.
	Delete(ctx context.Context, id int64, by uuid.UUID) error
	// Get returns the event if viewer may see it.
	Get(ctx context.Context, id int64, viewer uuid.UUID) (*model.Event, error)
	// QueryRange returns owner's events starting in [from, to).
	QueryRange(ctx context.Context, owner uuid.UUID, from, to time.Time) ([]model.Event, error)
	// QueryVisibleTo returns the part of owner's calendar in [from, to) that viewer may see.
	QueryVisibleTo(ctx context.Context, viewer, owner uuid.UUID, from, to time.Time) ([]model.Event, error)
	// EventsOn returns visible events starting on day.
	EventsOn(ctx context.Context, viewer, owner uuid.UUID, day time.Time) ([]model.Event, error)
	// MonthDurations returns visible hours per day of month.
	MonthDurations(ctx context.Context, viewer, owner uuid.UUID, month time.Time) (map[string]float64, error)
	// Location is the time zone calendar days are evaluated in.
	Location() *time.Location
}

type EventServiceImpl struct {
	events  repository.EventRepository
	friends repository.FriendshipRepository
	loc     *time.Location
}

// NewEventService constructs EventService. A nil loc means UTC.
func NewEventService(events repository.EventRepository, friends repository.FriendshipRepository, loc *time.Location) *EventServiceImpl {
	if loc == nil {
		loc = time.UTC
	}
	return &EventServiceImpl{events: events, friends: friends, loc: loc}
}

func (s *EventServiceImpl) Location() *time.Location { return s.loc }

// Create validates e and stores it with owner as both owner and creator.
func (s *EventServiceImpl) Create(ctx context.Context, owner uuid.UUID, e model.Event) (*model.Event, error) {
	if owner == uuid.Nil {
		return nil, fmt.Errorf("%w: empty owner", errs.ErrValidation)
	}
	if e.Privacy == "" {
		e.Privacy = model.PrivacyPrivate
	}
	e.ID = 0
	e.OwnerID = owner
	e.CreatorID = owner
	e.Title = strings.TrimSpace(e.Title)
	normalizeShares(&e)
	if err := validateEvent(&e); err != nil {
		return nil, err
	}
	if err := s.events.Create(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Update re-validates the patched event inside the repository transaction.
func (s *EventServiceImpl) Update(ctx context.Context, id int64, by uuid.UUID, patch model.EventPatch) (*model.Event, error) {
	if id <= 0 {
		return nil, errs.ErrNotFound
	}
	return s.events.Update(ctx, id, by, func(e *model.Event) error {
		patch.Apply(e)
		e.Title = strings.TrimSpace(e.Title)
		normalizeShares(e)
		return validateEvent(e)
	})
}

// Delete removes the event.
func (s *EventServiceImpl) Delete(ctx context.Context, id int64, by uuid.UUID) error {
	if id <= 0 {
		return errs.ErrNotFound
	}
	return s.events.Delete(ctx, id, by)
}

// Get hides events the viewer may not see behind errs.ErrNotFound.
func (s *EventServiceImpl) Get(ctx context.Context, id int64, viewer uuid.UUID) (*model.Event, error) {
	e, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OwnerID == viewer {
		return e, nil
	}
	ok, err := s.canSee(ctx, viewer, e)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	e.SharedWith = nil
	return e, nil
}

func (s *EventServiceImpl) canSee(ctx context.Context, viewer uuid.UUID, e *model.Event) (bool, error) {
	switch e.Privacy {
	case model.PrivacyFriends:
	case model.PrivacySpecificUsers:
		if !slices.Contains(e.SharedWith, viewer) {
			return false, nil
		}
	default:
		return false, nil
	}
	return s.friends.AreFriends(ctx, viewer, e.OwnerID)
}

// QueryRange returns every event of owner starting in [from, to).
func (s *EventServiceImpl) QueryRange(ctx context.Context, owner uuid.UUID, from, to time.Time) ([]model.Event, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return s.events.List(ctx, model.EventQuery{OwnerID: owner, From: from, To: to})
}

// QueryVisibleTo returns the full set to the owner, the friends-visible subset to an
// accepted friend and nothing to anyone else.
func (s *EventServiceImpl) QueryVisibleTo(ctx context.Context, viewer, owner uuid.UUID, from, to time.Time) ([]model.Event, error) {
	if viewer == owner {
		return s.QueryRange(ctx, owner, from, to)
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	ok, err := s.friends.AreFriends(ctx, viewer, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.Event{}, nil
	}
	return s.events.List(ctx, model.EventQuery{OwnerID: owner, From: from, To: to, ViewerID: viewer})
}

// EventsOn returns the visible events starting on the calendar day containing day.
func (s *EventServiceImpl) EventsOn(ctx context.Context, viewer, owner uuid.UUID, day time.Time) ([]model.Event, error) {
	from, to := calendar.DayWindow(day, s.loc)
	return s.QueryVisibleTo(ctx, viewer, owner, from, to)
}

// MonthDurations aggregates visible hours per day over the month containing month.
func (s *EventServiceImpl) MonthDurations(ctx context.Context, viewer, owner uuid.UUID, month time.Time) (map[string]float64, error) {
	from, to := calendar.MonthWindow(month, s.loc)
	evs, err := s.QueryVisibleTo(ctx, viewer, owner, from, to)
	if err != nil {
		return nil, err
	}
	return calendar.DailyDurations(evs, s.loc), nil
}

// normalizeShares drops duplicates and the owner, and clears the list for other privacy levels.
func normalizeShares(e *model.Event) {
	if e.Privacy != model.PrivacySpecificUsers {
		e.SharedWith = nil
		return
	}
	out := e.SharedWith[:0:0]
	for _, id := range e.SharedWith {
		if id == uuid.Nil || id == e.OwnerID || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	e.SharedWith = out
}

func validateEvent(e *model.Event) error {
	return validate.Chain(
		validate.Required("title", e.Title),
		validate.MaxLen("title", e.Title, MaxTitleLen),
		validate.MaxLen("description", e.Description, MaxDescriptionLen),
		validate.After("end", e.Start, e.End),
		validate.Check(e.Privacy.Valid(), fmt.Sprintf("unknown privacy %q", e.Privacy)),
		validate.Check(len(e.SharedWith) <= MaxSharedWith, fmt.Sprintf("at most %d shared users", MaxSharedWith)),
	)
}

func validateRange(from, to time.Time) error {
	return validate.Chain(
		validate.After("to", from, to),
		validate.Check(to.Sub(from) <= MaxRange, "range is too long"),
	)
}
