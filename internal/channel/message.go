// Package channel is the live connection to the relay: the shared message
// shape and a websocket client that reconnects with exponential backoff.
package channel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bethropolis/tandem/internal/types"
)

// Actions carried in Message.Action.
const (
	ActionEdit             = "edit"
	ActionTyping           = "typing"
	ActionUserConnected    = "user_connected"
	ActionUserDisconnected = "user_disconnected"
	ActionError            = "error"
)

// Message is the frame exchanged with the relay in both directions.
type Message struct {
	Action         string          `json:"action"`
	Content        string          `json:"content"`
	User           string          `json:"user"`
	CursorPosition *types.Position `json:"cursorPosition,omitempty"`
	Message        string          `json:"message,omitempty"`
}

// UnmarshalJSON accepts the cursor under either cursorPosition or cursor_position.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		CursorPositionSnake *types.Position `json:"cursor_position"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)
	if m.CursorPosition == nil {
		m.CursorPosition = aux.CursorPositionSnake
	}
	return nil
}

// Decode parses one frame.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Action == "" {
		return Message{}, fmt.Errorf("decode message: missing action")
	}
	return m, nil
}

// Encode serializes one frame. Markup in the content is not HTML-escaped.
func Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// EditMessage wraps a local edit for sending.
func EditMessage(ev types.EditEvent) Message {
	return Message{
		Action:         ActionEdit,
		Content:        ev.Content,
		User:           ev.User,
		CursorPosition: ev.CursorPosition,
	}
}

// Edit extracts the edit event carried by an edit message.
func (m Message) Edit() types.EditEvent {
	return types.EditEvent{
		Content:        m.Content,
		User:           m.User,
		CursorPosition: m.CursorPosition,
	}
}
