package proto

import (
	"encoding/json"
	"time"
)

// TimeLayout renders timestamps as UTC ISO-8601 with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime formats t with TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const (
	InboundSendMessage = "send_message"
	InboundTyping      = "typing"
	InboundStopTyping  = "stop_typing"

	OutboundError = "error"
)

// SendMessageData is a direct message from the client.
type SendMessageData struct {
	To      int64  `json:"to" validate:"required,gt=0"`
	Content string `json:"content" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=text image file"`
}

// TypingData names the peer a typing indicator is for.
type TypingData struct {
	To int64 `json:"to" validate:"required,gt=0"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// UserRef identifies a message participant.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// MessagePayload is carried by receive_message and message_sent.
type MessagePayload struct {
	ID        int64   `json:"id"`
	From      UserRef `json:"from"`
	To        UserRef `json:"to"`
	Content   string  `json:"content"`
	Type      string  `json:"type"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"createdAt"`
}

// PresencePayload is carried by typing and online/offline events.
type PresencePayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username,omitempty"`
}

// ProfilePayload is the public view of a user.
type ProfilePayload struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Status   string `json:"status"`
}

// FriendRequestPayload is carried by new_friend_request.
type FriendRequestPayload struct {
	ID        int64          `json:"id"`
	From      ProfilePayload `json:"from"`
	Status    string         `json:"status"`
	CreatedAt string         `json:"createdAt"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
