package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/whosfree/internal/api"
	"github.com/and161185/whosfree/internal/calendar"
	"github.com/and161185/whosfree/internal/convert"
	"github.com/and161185/whosfree/internal/errs"
	"github.com/and161185/whosfree/internal/model"
)

// --- helpers ---

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, r, s.log, errs.ErrUnauthorized)
	}
	return id, ok
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad %s", errs.ErrValidation, name)
	}
	return id, nil
}

func pathUser(r *http.Request, name string) (uuid.UUID, error) {
	return convert.ParseID(name, chi.URLParam(r, name))
}

// rangeFromQuery reads either ?date=YYYY-MM-DD or ?from=&to= (RFC 3339).
func (s *Server) rangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	loc := s.events.Location()
	if d := q.Get("date"); d != "" {
		day, err := calendar.ParseDay(d, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", errs.ErrValidation)
		}
		from, to := calendar.DayWindow(day, loc)
		return from, to, nil
	}
	if q.Get("from") == "" && q.Get("to") == "" {
		from, to := calendar.DayWindow(time.Now(), loc)
		return from, to, nil
	}
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be RFC 3339", errs.ErrValidation)
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be RFC 3339", errs.ErrValidation)
	}
	return from, to, nil
}

// --- auth & users ---

// Register handles POST /api/auth/register.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	id, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.RegisterResponse{UserID: id.String()})
}

// Login handles POST /api/auth/login.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	tok, u, err := s.auth.LoginWithIP(r.Context(), req.Email, req.Password, r.RemoteAddr)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, api.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt.UTC(),
		User:        convert.ToUser(u),
	})
}

// Me handles GET /api/users/me.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	u, err := s.auth.GetUser(r.Context(), me)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToUser(*u))
}

// SearchUsers handles GET /api/users?q=&limit=.
func (s *Server) SearchUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	found, err := s.auth.SearchUsers(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToUserSummaries(found))
}

// --- events ---

// CreateEvent handles POST /api/events.
func (s *Server) CreateEvent(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var req api.EventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	in, err := convert.FromEventRequest(req)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	e, err := s.events.Create(r.Context(), me, in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToEvent(*e))
}

// ListEvents handles GET /api/events for the caller's own calendar.
func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	from, to, err := s.rangeFromQuery(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	evs, err := s.events.QueryRange(r.Context(), me, from, to)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToEvents(evs))
}

// GetEvent handles GET /api/events/{id}.
func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	e, err := s.events.Get(r.Context(), id, me)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToEvent(*e))
}

// UpdateEvent handles PATCH /api/events/{id}.
func (s *Server) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var req api.EventPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	patch, err := convert.FromEventPatch(req)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	e, err := s.events.Update(r.Context(), id, me, patch)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToEvent(*e))
}

// DeleteEvent handles DELETE /api/events/{id}.
func (s *Server) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.events.Delete(r.Context(), id, me); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UserEvents handles GET /api/users/{id}/events: the part of another calendar the caller may see.
func (s *Server) UserEvents(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	owner, err := pathUser(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	var evs []model.Event
	if d := r.URL.Query().Get("date"); d != "" {
		day, perr := calendar.ParseDay(d, s.events.Location())
		if perr != nil {
			writeError(w, r, s.log, fmt.Errorf("%w: date must be YYYY-MM-DD", errs.ErrValidation))
			return
		}
		evs, err = s.events.EventsOn(r.Context(), me, owner, day)
	} else {
		from, to, rerr := s.rangeFromQuery(r)
		if rerr != nil {
			writeError(w, r, s.log, rerr)
			return
		}
		evs, err = s.events.QueryVisibleTo(r.Context(), me, owner, from, to)
	}
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToEvents(evs))
}

// Heatmap handles GET /api/users/{id}/heatmap?month=YYYY-MM.
func (s *Server) Heatmap(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	owner, err := pathUser(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	loc := s.events.Location()
	month := time.Now().In(loc)
	if m := strings.TrimSpace(r.URL.Query().Get("month")); m != "" {
		if month, err = calendar.ParseMonth(m, loc); err != nil {
			writeError(w, r, s.log, fmt.Errorf("%w: month must be YYYY-MM", errs.ErrValidation))
			return
		}
	}
	days, err := s.events.MonthDurations(r.Context(), me, owner, month)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToHeatmap(month.Format(calendar.MonthLayout), days))
}

// --- friends ---

// RequestFriend handles POST /api/friends/requests.
func (s *Server) RequestFriend(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var req api.FriendRequestCreate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	to, err := convert.ParseID("user_id", req.UserID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	f, err := s.friends.Request(r.Context(), me, to)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToFriendship(*f))
}

// ListFriendRequests handles GET /api/friends/requests.
func (s *Server) ListFriendRequests(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	in, err := s.friends.ListPendingIncoming(r.Context(), me)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out, err := s.friends.ListPendingOutgoing(r.Context(), me)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FriendRequests{
		Incoming: convert.ToFriendRequests(in),
		Outgoing: convert.ToFriendRequests(out),
	})
}

// AcceptFriend handles POST /api/friends/requests/{id}/accept.
func (s *Server) AcceptFriend(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	f, err := s.friends.Accept(r.Context(), id, me)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToFriendship(*f))
}

// DeclineFriend handles DELETE /api/friends/requests/{id}.
func (s *Server) DeclineFriend(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := s.friends.DeletePending(r.Context(), id, me); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFriends handles GET /api/friends.
func (s *Server) ListFriends(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	fs, err := s.friends.ListAcceptedFriends(r.Context(), me)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToUserSummaries(fs))
}

// --- messages ---

// SendMessage handles POST /api/messages.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var req api.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	in, err := convert.FromSendRequest(me, req)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	m, err := s.messages.Send(r.Context(), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToMessage(*m))
}

// Conversation handles GET /api/messages/{peerID}.
func (s *Server) Conversation(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	peer, err := pathUser(r, "peerID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	ms, err := s.messages.Conversation(r.Context(), me, peer)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToMessages(ms))
}

// MarkRead handles POST /api/messages/{peerID}/read.
func (s *Server) MarkRead(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	peer, err := pathUser(r, "peerID")
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	n, err := s.messages.MarkRead(r.Context(), me, peer)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MarkReadResponse{Updated: n})
}

// Unread handles GET /api/messages/unread.
func (s *Server) Unread(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	n, err := s.messages.UnreadCount(r.Context(), me)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, api.UnreadResponse{Count: n})
}
