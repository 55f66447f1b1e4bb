package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
	"github.com/gofrs/uuid/v5"
)

// State is the subscription state of a session.
type State int

const (
	Unsubscribed State = iota
	Subscribed
)

func (s State) String() string {
	if s == Subscribed {
		return "subscribed"
	}
	return "unsubscribed"
}

// HistoryFunc loads the full ordered history of the session room.
type HistoryFunc func(ctx context.Context) ([]model.Message, error)

// Session is one party's subscription to a room.
//
// Join replays the full history exactly once: live messages that arrive while the
// history is loading are buffered and flushed afterwards, skipping ids already replayed.
type Session struct {
	hub     *Hub
	room    string
	user    uuid.UUID
	out     Subscriber
	history HistoryFunc

	mu        sync.Mutex
	state     State
	replaying bool
	buffered  []Envelope
}

// NewSession creates an unsubscribed session for user in room delivering to out.
func NewSession(hub *Hub, room string, user uuid.UUID, out Subscriber, history HistoryFunc) *Session {
	return &Session{hub: hub, room: room, user: user, out: out, history: history}
}

// Room returns the room name.
func (s *Session) Room() string { return s.room }

// State returns the current subscription state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Join subscribes to the room, replays history and announces the user to other members.
func (s *Session) Join(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Subscribed {
		s.mu.Unlock()
		return fmt.Errorf("%w: already subscribed to %s", errs.ErrInvalidState, s.room)
	}
	s.state = Subscribed
	s.replaying = true
	s.buffered = nil
	s.mu.Unlock()

	// Register before loading so nothing sent in between is missed.
	s.hub.add(s.room, s)

	msgs, err := s.history(ctx)
	if err != nil {
		s.hub.remove(s.room, s)
		s.mu.Lock()
		s.state = Unsubscribed
		s.replaying = false
		s.buffered = nil
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.state != Subscribed {
		// Left while loading.
		s.mu.Unlock()
		return nil
	}
	seen := make(map[int64]struct{}, len(msgs))
	for _, m := range msgs {
		seen[m.ID] = struct{}{}
	}
	s.out.Deliver(Envelope{Type: TypeHistory, Room: s.room, History: msgs})
	for _, env := range s.buffered {
		if env.Type == TypeMessage && env.Message != nil {
			if _, dup := seen[env.Message.ID]; dup {
				continue
			}
		}
		s.out.Deliver(env)
	}
	s.buffered = nil
	s.replaying = false
	s.mu.Unlock()

	s.hub.Broadcast(s.room, Envelope{Type: TypeJoined, UserID: s.user}, s)
	return nil
}

// Leave unsubscribes and announces it. It reports false if the session was not subscribed.
func (s *Session) Leave() bool {
	s.mu.Lock()
	if s.state != Subscribed {
		s.mu.Unlock()
		return false
	}
	s.state = Unsubscribed
	s.replaying = false
	s.buffered = nil
	s.mu.Unlock()

	s.hub.remove(s.room, s)
	s.hub.Broadcast(s.room, Envelope{Type: TypeLeft, UserID: s.user}, nil)
	return true
}

// Deliver implements Subscriber for the hub.
func (s *Session) Deliver(env Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state != Subscribed:
		return false
	case s.replaying:
		s.buffered = append(s.buffered, env)
		return true
	default:
		return s.out.Deliver(env)
	}
}
