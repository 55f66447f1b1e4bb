package httpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/whosfree/internal/chat"
	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
)

// fakeAuth accepts tokens of the form "tok-<uuid>".
type fakeAuth struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
	pass  map[string]string // email -> password
	// lastIP records the address handed to LoginWithIP.
	lastIP string
	err    error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[uuid.UUID]model.User{}, pass: map[string]string{}}
}

func (a *fakeAuth) add(name string) uuid.UUID {
	id := uuid.Must(uuid.NewV4())
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[id] = model.User{ID: id, Username: name, Email: name + "@example.com", CreatedAt: time.Unix(0, 0)}
	a.pass[name+"@example.com"] = "password-" + name
	return id
}

func tokenFor(id uuid.UUID) string { return "tok-" + id.String() }

func (a *fakeAuth) Register(_ context.Context, username, email, password string) (uuid.UUID, error) {
	if a.err != nil {
		return uuid.Nil, a.err
	}
	if username == "" || len(password) < 8 {
		return uuid.Nil, fmt.Errorf("%w: bad input", errs.ErrValidation)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.users {
		if u.Email == email || u.Username == username {
			return uuid.Nil, errs.ErrAlreadyExists
		}
	}
	id := uuid.Must(uuid.NewV4())
	a.users[id] = model.User{ID: id, Username: username, Email: email}
	a.pass[email] = password
	return id, nil
}

func (a *fakeAuth) LoginWithIP(_ context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastIP = ip
	if a.err != nil {
		return model.Tokens{}, model.User{}, a.err
	}
	if p, ok := a.pass[email]; !ok || p != password {
		return model.Tokens{}, model.User{}, errs.ErrInvalidCredentials
	}
	for _, u := range a.users {
		if u.Email == email {
			return model.Tokens{AccessToken: tokenFor(u.ID), ExpiresAt: time.Unix(3600, 0)}, u, nil
		}
	}
	return model.Tokens{}, model.User{}, errs.ErrInvalidCredentials
}

func (a *fakeAuth) ParseToken(token string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(token, "tok-")
	if !ok {
		return uuid.Nil, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(rest)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	return id, nil
}

func (a *fakeAuth) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (a *fakeAuth) SearchUsers(_ context.Context, q string, _ int) ([]model.UserSummary, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: query required", errs.ErrValidation)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.UserSummary
	for _, u := range a.users {
		if strings.Contains(u.Username, q) {
			out = append(out, model.UserSummary{ID: u.ID, Username: u.Username})
		}
	}
	return out, nil
}

// fakeEventsSvc is a thin in-memory calendar without visibility rules beyond owner checks.
type fakeEventsSvc struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]model.Event
	loc    *time.Location

	lastFrom, lastTo time.Time
	lastMonth        time.Time
	err              error
}

func newFakeEvents() *fakeEventsSvc {
	return &fakeEventsSvc{byID: map[int64]model.Event{}, loc: time.UTC}
}

func (f *fakeEventsSvc) Create(_ context.Context, owner uuid.UUID, e model.Event) (*model.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(e.Title) == "" {
		return nil, fmt.Errorf("%w: title required", errs.ErrValidation)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	e.OwnerID, e.CreatorID = owner, owner
	if e.Privacy == "" {
		e.Privacy = model.PrivacyPrivate
	}
	f.byID[e.ID] = e
	return &e, nil
}

func (f *fakeEventsSvc) Update(_ context.Context, id int64, by uuid.UUID, patch model.EventPatch) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if e.CreatorID != by {
		return nil, errs.ErrForbidden
	}
	patch.Apply(&e)
	f.byID[id] = e
	return &e, nil
}

func (f *fakeEventsSvc) Delete(_ context.Context, id int64, by uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	if e.CreatorID != by {
		return errs.ErrForbidden
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeEventsSvc) Get(_ context.Context, id int64, viewer uuid.UUID) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok || e.OwnerID != viewer {
		return nil, errs.ErrNotFound
	}
	return &e, nil
}

func (f *fakeEventsSvc) list(owner uuid.UUID, from, to time.Time) []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFrom, f.lastTo = from, to
	out := []model.Event{}
	for _, e := range f.byID {
		if e.OwnerID == owner && !e.Start.Before(from) && e.Start.Before(to) {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeEventsSvc) QueryRange(_ context.Context, owner uuid.UUID, from, to time.Time) ([]model.Event, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: empty range", errs.ErrValidation)
	}
	return f.list(owner, from, to), nil
}

func (f *fakeEventsSvc) QueryVisibleTo(_ context.Context, viewer, owner uuid.UUID, from, to time.Time) ([]model.Event, error) {
	evs := f.list(owner, from, to)
	if viewer == owner {
		return evs, nil
	}
	out := []model.Event{}
	for _, e := range evs {
		if e.Privacy == model.PrivacyFriends {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventsSvc) EventsOn(ctx context.Context, viewer, owner uuid.UUID, day time.Time) ([]model.Event, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, f.loc)
	return f.QueryVisibleTo(ctx, viewer, owner, from, from.AddDate(0, 0, 1))
}

func (f *fakeEventsSvc) MonthDurations(_ context.Context, _, _ uuid.UUID, month time.Time) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMonth = month
	return map[string]float64{month.Format("2006-01") + "-03": 1.5, month.Format("2006-01") + "-04": 2}, nil
}

func (f *fakeEventsSvc) Location() *time.Location { return f.loc }

type fakeFriendsSvc struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]model.Friendship
	friends map[uuid.UUID][]model.UserSummary
}

func newFakeFriends() *fakeFriendsSvc {
	return &fakeFriendsSvc{byID: map[int64]model.Friendship{}, friends: map[uuid.UUID][]model.UserSummary{}}
}

func (f *fakeFriendsSvc) Request(_ context.Context, from, to uuid.UUID) (*model.Friendship, error) {
	if from == to {
		return nil, fmt.Errorf("%w: self", errs.ErrValidation)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lo, hi := model.OrderedPair(from, to)
	for _, x := range f.byID {
		if xl, xh := x.Pair(); xl == lo && xh == hi {
			return nil, errs.ErrAlreadyExists
		}
	}
	f.nextID++
	fr := model.Friendship{ID: f.nextID, RequesterID: from, AddresseeID: to, Status: model.FriendPending}
	f.byID[fr.ID] = fr
	return &fr, nil
}

func (f *fakeFriendsSvc) Accept(_ context.Context, id int64, by uuid.UUID) (*model.Friendship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fr, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if fr.AddresseeID != by {
		return nil, errs.ErrForbidden
	}
	if fr.Status != model.FriendPending {
		return nil, errs.ErrInvalidState
	}
	fr.Status = model.FriendAccepted
	f.byID[id] = fr
	return &fr, nil
}

func (f *fakeFriendsSvc) DeletePending(_ context.Context, id int64, by uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fr, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	if fr.AddresseeID != by {
		return errs.ErrForbidden
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeFriendsSvc) ListAcceptedFriends(_ context.Context, user uuid.UUID) ([]model.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.friends[user], nil
}

func (f *fakeFriendsSvc) pending(user uuid.UUID, incoming bool) []model.FriendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.FriendRequest
	for _, x := range f.byID {
		if x.Status != model.FriendPending {
			continue
		}
		if (incoming && x.AddresseeID == user) || (!incoming && x.RequesterID == user) {
			out = append(out, model.FriendRequest{
				ID:   x.ID,
				From: model.UserSummary{ID: x.RequesterID},
				To:   model.UserSummary{ID: x.AddresseeID},
			})
		}
	}
	return out
}

func (f *fakeFriendsSvc) ListPendingIncoming(_ context.Context, user uuid.UUID) ([]model.FriendRequest, error) {
	return f.pending(user, true), nil
}

func (f *fakeFriendsSvc) ListPendingOutgoing(_ context.Context, user uuid.UUID) ([]model.FriendRequest, error) {
	return f.pending(user, false), nil
}

func (f *fakeFriendsSvc) AreFriends(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

// fakeMessagesSvc keeps messages in memory and fans out through a real hub.
type fakeMessagesSvc struct {
	hub *chat.Hub

	mu     sync.Mutex
	nextID int64
	msgs   []model.Message
	err    error
}

func (f *fakeMessagesSvc) Send(_ context.Context, in model.SendMessage) (*model.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content required", errs.ErrValidation)
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.nextID++
	m := model.Message{
		ID:          f.nextID,
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Content:     in.Content,
		SentAt:      time.Unix(f.nextID, 0),
		Room:        model.DirectRoom(in.SenderID, in.RecipientID),
	}
	f.msgs = append(f.msgs, m)
	f.mu.Unlock()

	cp := m
	f.hub.Broadcast(m.Room, chat.Envelope{Type: chat.TypeMessage, Room: m.Room, Message: &cp}, nil)
	return &m, nil
}

func (f *fakeMessagesSvc) History(_ context.Context, room string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.msgs {
		if m.Room == room {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessagesSvc) Conversation(ctx context.Context, a, b uuid.UUID) ([]model.Message, error) {
	return f.History(ctx, model.DirectRoom(a, b))
}

func (f *fakeMessagesSvc) Join(ctx context.Context, user, peer uuid.UUID, sub chat.Subscriber) (*chat.Session, error) {
	room := model.DirectRoom(user, peer)
	sess := chat.NewSession(f.hub, room, user, sub, func(ctx context.Context) ([]model.Message, error) {
		return f.History(ctx, room)
	})
	if err := sess.Join(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

func (f *fakeMessagesSvc) MarkRead(_ context.Context, reader, peer uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.msgs {
		if f.msgs[i].RecipientID == reader && f.msgs[i].SenderID == peer && !f.msgs[i].Read {
			f.msgs[i].Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeMessagesSvc) UnreadCount(_ context.Context, reader uuid.UUID) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.msgs {
		if m.RecipientID == reader && !m.Read {
			n++
		}
	}
	return n, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

var errBoom = errors.New("boom")
