package wire

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProtocolVersion is the messaging protocol revision quill speaks.
const ProtocolVersion = "5.3"

// Header identifies a single message. Every message carries its own header
// and, when it was caused by another message, that message's header verbatim
// as the parent header.
type Header struct {
	ID       string `json:"msg_id"`
	Kind     Kind   `json:"msg_type"`
	Session  string `json:"session"`
	Username string `json:"username"`
	Date     string `json:"date"`
	Version  string `json:"version"`
}

// Message is the unit of exchange on every channel. Content is kept as a
// loose map so each kind can carry its own shape without a type per kind;
// the accessor methods on Message tolerate missing and mistyped fields.
type Message struct {
	Header       Header         `json:"header"`
	ParentHeader Header         `json:"parent_header"`
	Metadata     map[string]any `json:"metadata"`
	Content      map[string]any `json:"content"`
}

// NewMessage builds a fresh message of the given kind with a new message ID
// and the current timestamp. A nil content is normalized to an empty map so
// encoders never emit null.
func NewMessage(kind Kind, session string, content map[string]any) *Message {
	if content == nil {
		content = map[string]any{}
	}
	return &Message{
		Header: Header{
			ID:       uuid.NewString(),
			Kind:     kind,
			Session:  session,
			Username: "kernel",
			Date:     time.Now().UTC().Format(time.RFC3339),
			Version:  ProtocolVersion,
		},
		Metadata: map[string]any{},
		Content:  content,
	}
}

// Reply builds a message of the given kind caused by parent: the parent's
// header is embedded verbatim as the parent header and the session is
// inherited, so consumers can correlate the reply to its request.
func Reply(parent *Message, kind Kind, content map[string]any) *Message {
	m := NewMessage(kind, parent.Header.Session, content)
	m.ParentHeader = parent.Header
	return m
}

// Str returns the named content field as a string. Missing fields and
// non-string values yield the empty string.
func (m *Message) Str(key string) string {
	if m == nil || m.Content == nil {
		return ""
	}
	s, _ := m.Content[key].(string)
	return s
}

// Int returns the named content field as an int. JSON numbers decode as
// float64, so both int and float64 are accepted; anything else yields zero.
func (m *Message) Int(key string) int {
	if m == nil || m.Content == nil {
		return 0
	}
	switch v := m.Content[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Bool returns the named content field as a bool, defaulting to false.
func (m *Message) Bool(key string) bool {
	if m == nil || m.Content == nil {
		return false
	}
	b, _ := m.Content[key].(bool)
	return b
}

func (m *Message) String() string {
	return fmt.Sprintf("%s[%s]", m.Header.Kind, m.Header.ID)
}
