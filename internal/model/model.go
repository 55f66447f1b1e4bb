// Package model defines domain entities used by services and repositories.
package model

import (
	"bytes"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry
}

// User represents an account. The password is only ever kept as an encoded Argon2id hash.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique, exact match
	Email     string    // unique, stored lower-cased
	PwdHash   string    // $argon2id$... encoded hash
	CreatedAt time.Time
}

// UserSummary is the public projection of a user.
type UserSummary struct {
	ID       uuid.UUID
	Username string
}

// Privacy is the visibility scope of an event.
type Privacy string

const (
	PrivacyPrivate       Privacy = "private"
	PrivacyFriends       Privacy = "friends"
	PrivacySpecificUsers Privacy = "specific_users"
)

// Valid reports whether p is a known privacy level.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPrivate, PrivacyFriends, PrivacySpecificUsers:
		return true
	}
	return false
}

// Event is a time-boxed calendar record.
type Event struct {
	ID          int64
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Privacy     Privacy
	OwnerID     uuid.UUID   // whose calendar the event is on
	CreatorID   uuid.UUID   // who may mutate it
	SharedWith  []uuid.UUID // only meaningful for PrivacySpecificUsers
	CreatedAt   time.Time
}

// Duration returns End-Start.
func (e Event) Duration() time.Duration { return e.End.Sub(e.Start) }

// EventPatch is a partial update; nil fields are left unchanged.
type EventPatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	Privacy     *Privacy
	SharedWith  *[]uuid.UUID
}

// Apply copies the non-nil fields of p onto e.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.Privacy != nil {
		e.Privacy = *p.Privacy
	}
	if p.SharedWith != nil {
		e.SharedWith = append([]uuid.UUID(nil), (*p.SharedWith)...)
	}
}

// EventQuery selects events of one owner whose start falls in [From, To).
type EventQuery struct {
	OwnerID uuid.UUID
	From    time.Time
	To      time.Time
	// ViewerID, when set, restricts results to friends events and specific_users
	// events shared with the viewer. Friendship itself is checked by the caller.
	ViewerID uuid.UUID
}

// FriendStatus is the state of a friendship row.
type FriendStatus string

const (
	FriendPending  FriendStatus = "pending"
	FriendAccepted FriendStatus = "accepted"
)

// Friendship is a single row per unordered pair of users.
type Friendship struct {
	ID          int64
	RequesterID uuid.UUID
	AddresseeID uuid.UUID
	Status      FriendStatus
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// Pair returns the canonical (lo, hi) ordering of the two participants.
func (f Friendship) Pair() (uuid.UUID, uuid.UUID) { return OrderedPair(f.RequesterID, f.AddresseeID) }

// FriendRequest is a pending request joined with the other party's username.
type FriendRequest struct {
	ID        int64
	From      UserSummary
	To        UserSummary
	CreatedAt time.Time
}

// Message is a persisted chat line of a two-party room.
type Message struct {
	ID          int64
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Content     string
	SentAt      time.Time // server-assigned
	Read        bool
	Room        string
}

// SendMessage is a send intent. Room is optional and must match the pair when set.
type SendMessage struct {
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Content     string
	Room        string
}

// DirectRoom returns the room name of the conversation between a and b.
// The name is a channel label only; participants are always carried explicitly.
func DirectRoom(a, b uuid.UUID) string {
	lo, hi := OrderedPair(a, b)
	return "dm:" + lo.String() + ":" + hi.String()
}

// OrderedPair returns a and b ordered by their byte representation.
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a.Bytes(), b.Bytes()) <= 0 {
		return a, b
	}
	return b, a
}
