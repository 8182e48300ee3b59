package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")

// UserStatus is the persisted presence status of a user.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
)

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Avatar       string
	Status       UserStatus
	CreatedAt    time.Time
}

// UserRef is the display metadata attached to messages and notifications.
type UserRef struct {
	ID       int64
	Username string
	Avatar   string
}

// MessageType tags message content.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Message represents a persisted direct message with resolved display metadata.
type Message struct {
	ID        int64
	From      UserRef
	To        UserRef
	Content   string
	Type      MessageType
	Read      bool
	CreatedAt time.Time
}

// HistoryCursor positions a history page strictly before a message.
// BeforeID breaks ties between messages created in the same millisecond;
// zero means every message at Before is excluded.
type HistoryCursor struct {
	Before   time.Time
	BeforeID int64
}

// FriendRequestStatus defines friend request status.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is a request from one user to befriend another.
type FriendRequest struct {
	ID         int64
	FromUserID int64
	ToUserID   int64
	Status     FriendRequestStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers matches username or email, case-insensitively.
	SearchUsers(ctx context.Context, query string, limit int) ([]*User, error)

	// SetUserStatus persists the presence status of a user.
	SetUserStatus(ctx context.Context, userID int64, status UserStatus) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message and returns it with display metadata resolved.
	CreateMessage(ctx context.Context, fromUserID, toUserID int64, content string, msgType MessageType) (*Message, error)

	// ListConversation returns up to limit messages exchanged between two users,
	// positioned before cursor when set, oldest first.
	ListConversation(ctx context.Context, userID, peerID int64, limit int, cursor *HistoryCursor) ([]*Message, error)

	// MarkRead flags the given messages as read when addressed to recipientID.
	MarkRead(ctx context.Context, recipientID int64, messageIDs []int64) (int64, error)

	// CountUnread counts unread messages addressed to the user.
	CountUnread(ctx context.Context, userID int64) (int64, error)
}

// FriendStore handles friendships and friend requests.
type FriendStore interface {
	// CreateFriendRequest creates a new pending friend request.
	CreateFriendRequest(ctx context.Context, fromUserID, toUserID int64) (*FriendRequest, error)

	// GetFriendRequest retrieves a friend request by ID.
	GetFriendRequest(ctx context.Context, id int64) (*FriendRequest, error)

	// GetPendingRequest retrieves the pending request from one user to another.
	GetPendingRequest(ctx context.Context, fromUserID, toUserID int64) (*FriendRequest, error)

	// ListPendingRequests lists pending requests addressed to the user.
	ListPendingRequests(ctx context.Context, toUserID int64) ([]*FriendRequest, error)

	// UpdateFriendRequestStatus moves a pending request to its final status.
	UpdateFriendRequestStatus(ctx context.Context, id int64, status FriendRequestStatus) error

	// AcceptFriendRequest marks the request accepted and records the friendship
	// in both directions atomically.
	AcceptFriendRequest(ctx context.Context, id int64) error

	// FriendIDs returns the ids of all friends of the user.
	FriendIDs(ctx context.Context, userID int64) ([]int64, error)

	// ListFriends returns the friends of the user.
	ListFriends(ctx context.Context, userID int64) ([]*User, error)

	// IsFriend checks if two users are friends.
	IsFriend(ctx context.Context, userID, friendID int64) (bool, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore
	FriendStore

	// Close closes the underlying database connection.
	Close() error
}
