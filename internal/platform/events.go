// internal/platform/events.go
package platform

import (
	"github.com/user/relatobot/internal/types"
)

// Message is an inbound text message in a session channel.
type Message struct {
	Channel types.ChannelID
	Author  types.UserID
	ID      types.MessageID
	Text    string
}

// Selection is a button-style choice made against a prompt message.
type Selection struct {
	Channel types.ChannelID
	Author  types.UserID
	// Prompt identifies the message that carried the options.
	Prompt types.MessageID
	// Option is the zero-based index of the chosen option.
	Option int
}

// Event is one inbound occurrence in a channel. Exactly one field is set.
type Event struct {
	Message   *Message
	Selection *Selection
}
