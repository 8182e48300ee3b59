package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventReceiveMessage delivers a direct message to its recipient.
	EventReceiveMessage EventKind = iota
	// EventMessageSent acknowledges a persisted message to its sender.
	EventMessageSent
	// EventUserTyping tells a peer that the user is typing.
	EventUserTyping
	// EventUserStopTyping tells a peer that the user stopped typing.
	EventUserStopTyping
	// EventFriendOnline tells friends a user came online.
	EventFriendOnline
	// EventFriendOffline tells friends a user went offline.
	EventFriendOffline
	// EventNewFriendRequest tells a user somebody asked to be friends.
	EventNewFriendRequest
	// EventFriendRequestAccepted tells the requester their request was accepted.
	EventFriendRequestAccepted
	// EventError notifies clients about a domain error.
	EventError
)

var eventNames = [...]string{
	EventReceiveMessage:        "receive_message",
	EventMessageSent:           "message_sent",
	EventUserTyping:            "user_typing",
	EventUserStopTyping:        "user_stop_typing",
	EventFriendOnline:          "friend_online",
	EventFriendOffline:         "friend_offline",
	EventNewFriendRequest:      "new_friend_request",
	EventFriendRequestAccepted: "friend_request_accepted",
	EventError:                 "error",
}

// String returns the wire name of the event.
func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be mutated after emission.
type Event struct {
	Kind          EventKind
	UserID        int64
	Username      string
	Message       *Message
	FriendRequest *FriendRequestNotice
	Profile       *Profile
	Error         *CoreError
}

// Profile is the public view of a user carried in friend notifications.
type Profile struct {
	ID       int64
	Username string
	Email    string
	Avatar   string
	Status   string
}

// FriendRequestNotice describes an incoming friend request.
type FriendRequestNotice struct {
	ID        int64
	From      Profile
	Status    string
	CreatedAt time.Time
}

func errorEvent(err error) *Event {
	return &Event{Kind: EventError, Error: ErrorFor(err)}
}
