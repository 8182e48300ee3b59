package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendMessage delivers a direct message to a friend.
	CommandSendMessage CommandKind = iota
	// CommandTyping tells the peer the sender started typing.
	CommandTyping
	// CommandStopTyping tells the peer the sender stopped typing.
	CommandStopTyping
)

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	To      int64
	Content string
	Type    string
}
