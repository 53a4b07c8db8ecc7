// Package tinychat implements a minimal streaming AI chat service: a
// per-session message store, an OpenAI-compatible provider client and the
// client-side conversation state machine that ties them together.
package tinychat

import (
	"encoding/json"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartTypeText is the only part kind the core interprets. Every other kind
// is carried through storage untouched.
const PartTypeText = "text"

// Part is one typed fragment of a message's content. Text parts expose their
// payload; anything else is kept as the raw JSON it arrived as so that
// save/load round-trips never lose data the core doesn't understand.
type Part struct {
	Type string
	Text string

	raw json.RawMessage
}

// TextPart builds a plain text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

func (p Part) MarshalJSON() ([]byte, error) {
	if p.Type == PartTypeText {
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: p.Type, Text: p.Text})
	}
	if p.raw != nil {
		return p.raw, nil
	}
	return json.Marshal(struct {
		Type string `json:"type"`
	}{Type: p.Type})
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Type = aux.Type
	p.Text = aux.Text
	if aux.Type != PartTypeText {
		p.raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

// Message is one turn in a conversation.
type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewUserMessage builds a user message with a single text part and a fresh id.
func NewUserMessage(text string) Message {
	return Message{ID: NewMessageID(), Role: RoleUser, Parts: []Part{TextPart(text)}}
}

// NewAssistantMessage builds an assistant message with a single text part and a fresh id.
func NewAssistantMessage(text string) Message {
	return Message{ID: NewMessageID(), Role: RoleAssistant, Parts: []Part{TextPart(text)}}
}

// Text returns the concatenated text content of the message.
func (m Message) Text() string {
	return ExtractText(m.Parts)
}

// ExtractText concatenates the payloads of all text parts in order, with no
// separator. Non-text parts and text parts with no payload contribute
// nothing; a nil or empty slice yields "".
func ExtractText(parts []Part) string {
	var out []byte
	for _, p := range parts {
		if p.Type != PartTypeText {
			continue
		}
		out = append(out, p.Text...)
	}
	return string(out)
}
