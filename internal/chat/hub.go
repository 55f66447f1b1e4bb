// Package chat fans persisted messages out to the parties currently subscribed to a room.
package chat

import (
	"sync"
	"time"

	"github.com/and161185/whosfree/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Envelope types sent to subscribers.
const (
	TypeHistory = "history"
	TypeMessage = "message"
	TypeJoined  = "joined"
	TypeLeft    = "left"
	TypeError   = "error"
)

// Envelope is one frame delivered to a subscriber.
type Envelope struct {
	Type    string
	Room    string
	Message *model.Message  // TypeMessage
	History []model.Message // TypeHistory
	UserID  uuid.UUID       // TypeJoined, TypeLeft
	Error   string          // TypeError
	At      time.Time
}

// Subscriber receives envelopes. Deliver must not block; it returns false when
// the subscriber can no longer accept frames and should be dropped.
type Subscriber interface {
	Deliver(env Envelope) bool
}

// Hub tracks room membership. It is safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Subscriber]struct{}
	log   *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{rooms: make(map[string]map[Subscriber]struct{}), log: log}
}

func (h *Hub) add(room string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.rooms[room]
	if !ok {
		m = make(map[Subscriber]struct{})
		h.rooms[room] = m
	}
	m[s] = struct{}{}
}

func (h *Hub) remove(room string, s Subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := m[s]; !ok {
		return false
	}
	delete(m, s)
	if len(m) == 0 {
		delete(h.rooms, room)
	}
	return true
}

// Members returns the number of subscribers of room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast delivers env to every member of room except skip and returns how many accepted it.
// Members that refuse delivery are removed.
func (h *Hub) Broadcast(room string, env Envelope, skip Subscriber) int {
	if env.Room == "" {
		env.Room = room
	}
	if env.At.IsZero() {
		env.At = time.Now().UTC()
	}

	h.mu.RLock()
	members := make([]Subscriber, 0, len(h.rooms[room]))
	for s := range h.rooms[room] {
		if s != skip {
			members = append(members, s)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range members {
		if s.Deliver(env) {
			delivered++
			continue
		}
		if h.remove(room, s) {
			h.log.Warn("subscriber dropped", zap.String("room", room), zap.String("type", env.Type))
		}
	}
	return delivered
}
