// Package convert maps domain types to and from their JSON wire representation.
package convert

import (
	"fmt"
	"strings"
	"time"

	"github.com/and161185/whosfree/internal/api"
	"github.com/and161185/whosfree/internal/chat"
	"github.com/and161185/whosfree/internal/errs"
	model "github.com/and161185/whosfree/internal/model"
	u "github.com/gofrs/uuid/v5"
)

// --- helpers ---

func idString(id u.UUID) string {
	if id == u.Nil {
		return ""
	}
	return id.String()
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// ParseID parses a user id, mapping bad input to errs.ErrValidation.
func ParseID(field, s string) (u.UUID, error) {
	id, err := u.FromString(strings.TrimSpace(s))
	if err != nil || id == u.Nil {
		return u.Nil, fmt.Errorf("%w: %s is not a valid id", errs.ErrValidation, field)
	}
	return id, nil
}

// ParseIDs parses a list of user ids.
func ParseIDs(field string, in []string) ([]u.UUID, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]u.UUID, 0, len(in))
	for i, s := range in {
		id, err := ParseID(fmt.Sprintf("%s[%d]", field, i), s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func idStrings(ids []u.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// --- users ---

// ToUser converts an account; the password hash never leaves the server.
func ToUser(m model.User) api.User {
	return api.User{ID: idString(m.ID), Username: m.Username, Email: m.Email, CreatedAt: utc(m.CreatedAt)}
}

// ToUserSummaries converts a user list, never returning nil.
func ToUserSummaries(in []model.UserSummary) []api.UserSummary {
	out := make([]api.UserSummary, 0, len(in))
	for _, s := range in {
		out = append(out, api.UserSummary{ID: idString(s.ID), Username: s.Username})
	}
	return out
}

// --- events ---

// FromEventRequest converts a create request.
func FromEventRequest(in api.EventRequest) (model.Event, error) {
	shared, err := ParseIDs("shared_with", in.SharedWith)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		Title:       in.Title,
		Description: in.Description,
		Start:       in.Start,
		End:         in.End,
		Privacy:     model.Privacy(in.Privacy),
		SharedWith:  shared,
	}, nil
}

// FromEventPatch converts a partial update.
func FromEventPatch(in api.EventPatchRequest) (model.EventPatch, error) {
	p := model.EventPatch{
		Title:       in.Title,
		Description: in.Description,
		Start:       in.Start,
		End:         in.End,
	}
	if in.Privacy != nil {
		pr := model.Privacy(*in.Privacy)
		p.Privacy = &pr
	}
	if in.SharedWith != nil {
		ids, err := ParseIDs("shared_with", *in.SharedWith)
		if err != nil {
			return model.EventPatch{}, err
		}
		if ids == nil {
			ids = []u.UUID{}
		}
		p.SharedWith = &ids
	}
	return p, nil
}

// ToEvent converts a stored event.
func ToEvent(e model.Event) api.Event {
	return api.Event{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Start:         utc(e.Start),
		End:           utc(e.End),
		DurationHours: e.Duration().Hours(),
		Privacy:       string(e.Privacy),
		OwnerID:       idString(e.OwnerID),
		CreatorID:     idString(e.CreatorID),
		SharedWith:    idStrings(e.SharedWith),
		CreatedAt:     utc(e.CreatedAt),
	}
}

// ToEvents converts a list of events, never returning nil.
func ToEvents(in []model.Event) []api.Event {
	out := make([]api.Event, 0, len(in))
	for _, e := range in {
		out = append(out, ToEvent(e))
	}
	return out
}

// ToHeatmap wraps per-day hours for month.
func ToHeatmap(month string, days map[string]float64) api.Heatmap {
	if days == nil {
		days = map[string]float64{}
	}
	var total float64
	for _, h := range days {
		total += h
	}
	return api.Heatmap{Month: month, Days: days, TotalHours: total}
}

// --- friendships ---

func ToFriendship(f model.Friendship) api.Friendship {
	var responded *time.Time
	if f.RespondedAt != nil {
		t := f.RespondedAt.UTC()
		responded = &t
	}
	return api.Friendship{
		ID:          f.ID,
		RequesterID: idString(f.RequesterID),
		AddresseeID: idString(f.AddresseeID),
		Status:      string(f.Status),
		CreatedAt:   utc(f.CreatedAt),
		RespondedAt: responded,
	}
}

func ToFriendRequests(in []model.FriendRequest) []api.FriendRequest {
	out := make([]api.FriendRequest, 0, len(in))
	for _, r := range in {
		out = append(out, api.FriendRequest{
			ID:        r.ID,
			From:      api.UserSummary{ID: idString(r.From.ID), Username: r.From.Username},
			To:        api.UserSummary{ID: idString(r.To.ID), Username: r.To.Username},
			CreatedAt: utc(r.CreatedAt),
		})
	}
	return out
}

// --- messages ---

func ToMessage(m model.Message) api.Message {
	return api.Message{
		ID:          m.ID,
		SenderID:    idString(m.SenderID),
		RecipientID: idString(m.RecipientID),
		Content:     m.Content,
		SentAt:      utc(m.SentAt),
		Read:        m.Read,
		Room:        m.Room,
	}
}

func ToMessages(in []model.Message) []api.Message {
	out := make([]api.Message, 0, len(in))
	for _, m := range in {
		out = append(out, ToMessage(m))
	}
	return out
}

// FromSendRequest converts a send request from sender.
func FromSendRequest(sender u.UUID, in api.SendMessageRequest) (model.SendMessage, error) {
	to, err := ParseID("recipient_id", in.RecipientID)
	if err != nil {
		return model.SendMessage{}, err
	}
	return model.SendMessage{SenderID: sender, RecipientID: to, Content: in.Content, Room: in.Room}, nil
}

// ToFrame converts a hub envelope to a WebSocket frame.
func ToFrame(env chat.Envelope) api.Frame {
	f := api.Frame{
		Type:   env.Type,
		Room:   env.Room,
		UserID: idString(env.UserID),
		Error:  env.Error,
		At:     utc(env.At),
	}
	if env.Message != nil {
		m := ToMessage(*env.Message)
		f.Message = &m
	}
	if env.Type == chat.TypeHistory {
		f.History = ToMessages(env.History)
	}
	return f
}
