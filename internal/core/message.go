package core

import (
	"time"

	"github.com/vovakirdan/ichat-server/internal/store"
)

// UserRef is the display metadata attached to a message.
type UserRef struct {
	ID       int64
	Username string
	Avatar   string
}

// Message is the domain model for a persisted direct message.
type Message struct {
	ID        int64
	From      UserRef
	To        UserRef
	Content   string
	Type      string
	Read      bool
	CreatedAt time.Time
}

// MessageFromStore converts a persisted message.
func MessageFromStore(m *store.Message) *Message {
	return &Message{
		ID:        m.ID,
		From:      UserRef{ID: m.From.ID, Username: m.From.Username, Avatar: m.From.Avatar},
		To:        UserRef{ID: m.To.ID, Username: m.To.Username, Avatar: m.To.Avatar},
		Content:   m.Content,
		Type:      string(m.Type),
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
}
