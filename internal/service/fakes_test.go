package service

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
	"github.com/and161185/whosfree/internal/repository"
	"github.com/gofrs/uuid/v5"
)

/************ friendships ************/

type fakeFriends struct {
	rows   map[int64]*model.Friendship
	nextID int64
	known  map[uuid.UUID]bool // when non-nil, unknown addressees yield ErrNotFound
}

var _ repository.FriendshipRepository = (*fakeFriends)(nil)

func newFakeFriends() *fakeFriends { return &fakeFriends{rows: map[int64]*model.Friendship{}} }

func (f *fakeFriends) Create(_ context.Context, fr *model.Friendship) error {
	if f.known != nil && !f.known[fr.AddresseeID] {
		return errs.ErrNotFound
	}
	lo, hi := fr.Pair()
	for _, r := range f.rows {
		if a, b := r.Pair(); a == lo && b == hi {
			return errs.ErrAlreadyExists
		}
	}
	f.nextID++
	fr.ID = f.nextID
	fr.Status = model.FriendPending
	fr.CreatedAt = time.Now()
	c := *fr
	f.rows[fr.ID] = &c
	return nil
}

func (f *fakeFriends) pending(id int64, by uuid.UUID) (*model.Friendship, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if r.AddresseeID != by {
		return nil, errs.ErrForbidden
	}
	if r.Status != model.FriendPending {
		return nil, errs.ErrInvalidState
	}
	return r, nil
}

func (f *fakeFriends) Accept(_ context.Context, id int64, by uuid.UUID) (*model.Friendship, error) {
	r, err := f.pending(id, by)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	r.Status = model.FriendAccepted
	r.RespondedAt = &now
	c := *r
	return &c, nil
}

func (f *fakeFriends) DeletePending(_ context.Context, id int64, by uuid.UUID) error {
	if _, err := f.pending(id, by); err != nil {
		return err
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeFriends) ListFriends(_ context.Context, user uuid.UUID) ([]model.UserSummary, error) {
	var out []model.UserSummary
	for _, r := range f.rows {
		if r.Status != model.FriendAccepted {
			continue
		}
		switch user {
		case r.RequesterID:
			out = append(out, model.UserSummary{ID: r.AddresseeID})
		case r.AddresseeID:
			out = append(out, model.UserSummary{ID: r.RequesterID})
		}
	}
	return out, nil
}

func (f *fakeFriends) ListPending(_ context.Context, user uuid.UUID, incoming bool) ([]model.FriendRequest, error) {
	var out []model.FriendRequest
	for _, r := range f.rows {
		if r.Status != model.FriendPending {
			continue
		}
		if (incoming && r.AddresseeID == user) || (!incoming && r.RequesterID == user) {
			out = append(out, model.FriendRequest{
				ID:   r.ID,
				From: model.UserSummary{ID: r.RequesterID},
				To:   model.UserSummary{ID: r.AddresseeID},
			})
		}
	}
	return out, nil
}

func (f *fakeFriends) AreFriends(_ context.Context, a, b uuid.UUID) (bool, error) {
	lo, hi := model.OrderedPair(a, b)
	for _, r := range f.rows {
		if x, y := r.Pair(); x == lo && y == hi && r.Status == model.FriendAccepted {
			return true, nil
		}
	}
	return false, nil
}

/************ events ************/

type fakeEvents struct {
	rows   map[int64]*model.Event
	nextID int64
	lastQ  model.EventQuery
}

var _ repository.EventRepository = (*fakeEvents)(nil)

func newFakeEvents() *fakeEvents { return &fakeEvents{rows: map[int64]*model.Event{}} }

func cloneEvent(e *model.Event) *model.Event {
	c := *e
	c.SharedWith = slices.Clone(e.SharedWith)
	return &c
}

func (f *fakeEvents) Create(_ context.Context, e *model.Event) error {
	f.nextID++
	e.ID = f.nextID
	e.CreatedAt = time.Now()
	f.rows[e.ID] = cloneEvent(e)
	return nil
}

func (f *fakeEvents) Get(_ context.Context, id int64) (*model.Event, error) {
	e, ok := f.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneEvent(e), nil
}

func (f *fakeEvents) Update(_ context.Context, id int64, actor uuid.UUID, apply func(*model.Event) error) (*model.Event, error) {
	e, ok := f.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if e.CreatorID != actor {
		return nil, errs.ErrForbidden
	}
	work := cloneEvent(e)
	if err := apply(work); err != nil {
		return nil, err
	}
	f.rows[id] = cloneEvent(work)
	return work, nil
}

func (f *fakeEvents) Delete(_ context.Context, id int64, actor uuid.UUID) error {
	e, ok := f.rows[id]
	if !ok {
		return errs.ErrNotFound
	}
	if e.CreatorID != actor {
		return errs.ErrForbidden
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeEvents) List(_ context.Context, q model.EventQuery) ([]model.Event, error) {
	f.lastQ = q
	var out []model.Event
	for _, e := range f.rows {
		if e.OwnerID != q.OwnerID || e.Start.Before(q.From) || !e.Start.Before(q.To) {
			continue
		}
		if q.ViewerID != uuid.Nil {
			visible := e.Privacy == model.PrivacyFriends ||
				(e.Privacy == model.PrivacySpecificUsers && slices.Contains(e.SharedWith, q.ViewerID))
			if !visible {
				continue
			}
		}
		c := cloneEvent(e)
		if q.ViewerID != uuid.Nil {
			c.SharedWith = nil
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

/************ messages ************/

type fakeMessages struct {
	mu     sync.Mutex
	rows   []model.Message
	nextID int64
	known  map[uuid.UUID]bool
}

var _ repository.MessageRepository = (*fakeMessages)(nil)

func (f *fakeMessages) Insert(_ context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.known != nil && !f.known[m.RecipientID] {
		return errs.ErrNotFound
	}
	f.nextID++
	m.ID = f.nextID
	m.SentAt = time.Now()
	f.rows = append(f.rows, *m)
	return nil
}

func (f *fakeMessages) History(_ context.Context, room string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.rows {
		if m.Room == room {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) Conversation(_ context.Context, a, b uuid.UUID) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.rows {
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) MarkRead(_ context.Context, reader, sender uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.rows {
		m := &f.rows[i]
		if m.RecipientID == reader && m.SenderID == sender && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) UnreadCount(_ context.Context, reader uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.rows {
		if m.RecipientID == reader && !m.Read {
			n++
		}
	}
	return n, nil
}
