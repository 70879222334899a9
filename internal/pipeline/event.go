package pipeline

import (
	"strconv"
	"strings"
)

// Sender is the telegram account behind an inbound event.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
}

func (s Sender) ExternalID() string {
	return strconv.FormatInt(s.ID, 10)
}

// Envelope is the part every inbound event shares.
type Envelope struct {
	UpdateID int
	ChatID   int64
	From     Sender
}

func (e Envelope) envelope() Envelope { return e }

// Event is one of TextEvent, CommandEvent or ActionEvent.
type Event interface {
	envelope() Envelope
}

// TextEvent is a plain message. It activates the link flow only when it contains a supported link.
type TextEvent struct {
	Envelope
	Text string
}

// CommandEvent is a slash command such as /start ref_123.
type CommandEvent struct {
	Envelope
	Command string
	Args    string
}

// ActionEvent is an inline button press.
type ActionEvent struct {
	Envelope
	CallbackID string
	Data       string
	Message    MessageRef
}

// Fields splits the command arguments on whitespace.
func (c CommandEvent) Fields() []string {
	return strings.Fields(c.Args)
}

func eventName(ev Event) string {
	switch ev.(type) {
	case TextEvent:
		return "text"
	case CommandEvent:
		return "command"
	case ActionEvent:
		return "action"
	default:
		return "unknown"
	}
}
