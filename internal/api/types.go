// Package api holds the JSON wire types shared by the HTTP server and the CLI client.
package api

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// EventRequest creates an event. Times are RFC 3339.
type EventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Privacy     string    `json:"privacy,omitempty"`
	SharedWith  []string  `json:"shared_with,omitempty"`
}

// EventPatchRequest updates an event; absent fields are left unchanged.
type EventPatchRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Privacy     *string    `json:"privacy,omitempty"`
	SharedWith  *[]string  `json:"shared_with,omitempty"`
}

type Event struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	DurationHours float64   `json:"duration_hours"`
	Privacy       string    `json:"privacy"`
	OwnerID       string    `json:"owner_id"`
	CreatorID     string    `json:"creator_id"`
	SharedWith    []string  `json:"shared_with,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Heatmap is hours per ISO day for one month.
type Heatmap struct {
	Month      string             `json:"month"`
	Days       map[string]float64 `json:"days"`
	TotalHours float64            `json:"total_hours"`
}

type FriendRequestCreate struct {
	UserID string `json:"user_id"`
}

type Friendship struct {
	ID          int64      `json:"id"`
	RequesterID string     `json:"requester_id"`
	AddresseeID string     `json:"addressee_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

type FriendRequest struct {
	ID        int64       `json:"id"`
	From      UserSummary `json:"from"`
	To        UserSummary `json:"to"`
	CreatedAt time.Time   `json:"created_at"`
}

type FriendRequests struct {
	Incoming []FriendRequest `json:"incoming"`
	Outgoing []FriendRequest `json:"outgoing"`
}

type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
	Room        string `json:"room,omitempty"`
}

type Message struct {
	ID          int64     `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	SentAt      time.Time `json:"sent_at"`
	Read        bool      `json:"read"`
	Room        string    `json:"room"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type UnreadResponse struct {
	Count int64 `json:"count"`
}

// Frame is a WebSocket frame. Clients send {"type":"send","content":...}; the server
// sends history, message, joined, left and error frames.
type Frame struct {
	Type    string    `json:"type"`
	Room    string    `json:"room,omitempty"`
	Content string    `json:"content,omitempty"`
	Message *Message  `json:"message,omitempty"`
	History []Message `json:"history,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at,omitzero"`
}

// FrameSend is the only client frame type.
const FrameSend = "send"
