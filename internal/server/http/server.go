// Package httpserver exposes the JSON API and the chat WebSocket over chi.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/whosfree/internal/service"
)

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps aggregates collaborators required by the handlers.
type Deps struct {
	Auth     service.AuthService
	Events   service.EventService
	Friends  service.FriendService
	Messages service.MessageService
	Health   Pinger
	Log      *zap.Logger

	// RateLimit is requests per second per client address; 0 disables limiting.
	RateLimit float64
	RateBurst int
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// Server holds the HTTP handlers.
type Server struct {
	auth     service.AuthService
	events   service.EventService
	friends  service.FriendService
	messages service.MessageService
	health   Pinger
	log      *zap.Logger
}

// New constructs the handler set.
func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		auth:     d.Auth,
		events:   d.Events,
		friends:  d.Friends,
		messages: d.Messages,
		health:   d.Health,
		log:      log,
	}
}

// NewRouter builds the full chi router for d.
func NewRouter(d Deps) http.Handler {
	s := New(d)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if d.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(requestLogger(s.log))
	if d.RateLimit > 0 {
		r.Use(rateLimit(newIPRateLimiter(d.RateLimit, d.RateBurst, 10*time.Minute), s.log))
	}

	r.Get("/health", s.Health)
	r.With(authenticate(s.auth, true, s.log)).Get("/ws", s.Chat)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.Register)
		r.Post("/auth/login", s.Login)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(s.auth, false, s.log))

			r.Get("/users/me", s.Me)
			r.Get("/users", s.SearchUsers)
			r.Get("/users/{id}/events", s.UserEvents)
			r.Get("/users/{id}/heatmap", s.Heatmap)

			r.Route("/events", func(r chi.Router) {
				r.Post("/", s.CreateEvent)
				r.Get("/", s.ListEvents)
				r.Get("/{id}", s.GetEvent)
				r.Patch("/{id}", s.UpdateEvent)
				r.Delete("/{id}", s.DeleteEvent)
			})

			r.Route("/friends", func(r chi.Router) {
				r.Get("/", s.ListFriends)
				r.Post("/requests", s.RequestFriend)
				r.Get("/requests", s.ListFriendRequests)
				r.Post("/requests/{id}/accept", s.AcceptFriend)
				r.Delete("/requests/{id}", s.DeclineFriend)
			})

			r.Route("/messages", func(r chi.Router) {
				r.Post("/", s.SendMessage)
				r.Get("/unread", s.Unread)
				r.Get("/{peerID}", s.Conversation)
				r.Post("/{peerID}/read", s.MarkRead)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	})
	return r
}

// Health reports 200 when storage answers a ping, 503 otherwise.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
