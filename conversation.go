package tinychat

import (
	"log/slog"
	"strings"
)

// Status is the request lifecycle of a session view. Exactly one status per
// conversation; a new send is only accepted while StatusReady.
type Status string

const (
	StatusReady     Status = "ready"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// Conversation tracks one session's message list and request status on the
// client side. All transitions happen on event arrival; the caller drives it
// from a single goroutine (transport callbacks are never concurrent for the
// same view).
type Conversation struct {
	id       string
	messages []Message
	status   Status
	lastErr  error

	// index into messages of the assistant message currently being streamed,
	// or -1 when no turn is open
	pending int

	// OnChunk, when set, observes each merged fragment. Called from the
	// same goroutine that drives the transitions.
	OnChunk func(fragment string)

	logger *slog.Logger
}

// NewConversation constructs a conversation over previously loaded history.
func NewConversation(id string, history []Message) *Conversation {
	return &Conversation{
		id:       id,
		messages: append([]Message{}, history...),
		status:   StatusReady,
		pending:  -1,
		logger:   slog.Default(),
	}
}

func (c *Conversation) ID() string {
	return c.id
}

func (c *Conversation) Status() Status {
	return c.status
}

// Err returns the failure that moved the conversation into StatusError.
func (c *Conversation) Err() error {
	return c.lastErr
}

// Messages returns a copy of the current message list, including the
// in-progress assistant message while streaming.
func (c *Conversation) Messages() []Message {
	return append([]Message{}, c.messages...)
}

// Send appends a user message and marks the request submitted. The returned
// message is what the transport must dispatch. Rejected with ErrBusy unless
// the conversation is ready, and with ErrBlankMessage when the text trims to
// nothing.
func (c *Conversation) Send(text string) (Message, error) {
	if c.status != StatusReady {
		return Message{}, ErrBusy
	}
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrBlankMessage
	}
	msg := NewUserMessage(text)
	c.messages = append(c.messages, msg)
	c.status = StatusSubmitted
	return msg, nil
}

// ApplyChunk merges one streamed fragment into the open assistant message,
// creating it on the first chunk of the turn. Chunks concatenate in arrival
// order with no coalescing.
func (c *Conversation) ApplyChunk(fragment string) {
	if c.pending < 0 {
		c.messages = append(c.messages, Message{
			ID:    NewMessageID(),
			Role:  RoleAssistant,
			Parts: []Part{TextPart("")},
		})
		c.pending = len(c.messages) - 1
	}
	c.messages[c.pending].Parts[0].Text += fragment
	c.status = StatusStreaming
	if c.OnChunk != nil {
		c.OnChunk(fragment)
	}
}

// Finish finalizes the assistant message for the turn and returns the view
// to ready. No further mutation of the finalized message happens.
func (c *Conversation) Finish() {
	c.pending = -1
	c.status = StatusReady
}

// Fail moves the view into the error state. A partially streamed assistant
// message is discarded; everything before it stays intact.
func (c *Conversation) Fail(err error) {
	if c.pending >= 0 {
		c.messages = c.messages[:c.pending]
		c.pending = -1
	}
	c.lastErr = err
	c.status = StatusError
	c.logger.Error("Chat request failed", "sessionID", c.id, "error", err)
}

// Reset acknowledges a failure so the user can send again.
func (c *Conversation) Reset() {
	if c.status == StatusError {
		c.status = StatusReady
		c.lastErr = nil
	}
}
