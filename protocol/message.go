package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"cursorparty-presence-server/cursor"
)

type Kind string

const (
	KindNewConnection Kind = "newConnection"
	KindDisconnected  Kind = "disconnected"
	KindConnected     Kind = "connected"
	KindCursorUpdated Kind = "cursorUpdated"
	KindClicked       Kind = "clicked"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownKind      = errors.New("unknown message kind")
)

func (k Kind) Valid() bool {
	switch k {
	case KindNewConnection, KindDisconnected, KindConnected, KindCursorUpdated, KindClicked:
		return true
	default:
		return false
	}
}

// Relayable reports whether clients may originate k.
func (k Kind) Relayable() bool {
	return k == KindCursorUpdated || k == KindClicked
}

type Message struct {
	SenderID string          `json:"senderId,omitempty"`
	Type     Kind            `json:"type"`
	Data     json.RawMessage `json:"data"`
}

type MemberData struct {
	ID string `json:"id"`
}

type RosterData struct {
	Connections []string `json:"connections"`
}

type pointData struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode parses one frame. On ErrUnknownKind the parsed message is still
// returned so callers can report what arrived.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if !msg.Type.Valid() {
		return msg, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Type)
	}
	return msg, nil
}

func NewConnection(id string) Message {
	return newMessage(id, KindNewConnection, MemberData{ID: id})
}

func Disconnected(id string) Message {
	return newMessage(id, KindDisconnected, MemberData{ID: id})
}

// Connected builds the snapshot sent to a joining connection. self is the
// joiner's own id; peers must not contain it.
func Connected(self string, peers []string) Message {
	if peers == nil {
		peers = []string{}
	}
	return newMessage(self, KindConnected, RosterData{Connections: peers})
}

func CursorUpdated(p cursor.Position) Message {
	return newMessage("", KindCursorUpdated, p)
}

func Clicked(p cursor.Position) Message {
	return newMessage("", KindClicked, p)
}

func (m Message) Member() (string, error) {
	var d MemberData
	if err := m.payload(&d); err != nil {
		return "", err
	}
	if d.ID == "" {
		return "", fmt.Errorf("%w: %s without id", ErrMalformedMessage, m.Type)
	}
	return d.ID, nil
}

func (m Message) Roster() ([]string, error) {
	var d RosterData
	if err := m.payload(&d); err != nil {
		return nil, err
	}
	return d.Connections, nil
}

func (m Message) Point() (cursor.Position, error) {
	var d pointData
	if err := m.payload(&d); err != nil {
		return cursor.Position{}, err
	}
	if d.X == nil || d.Y == nil {
		return cursor.Position{}, fmt.Errorf("%w: %s without coordinates", ErrMalformedMessage, m.Type)
	}
	return cursor.Position{X: *d.X, Y: *d.Y}, nil
}

func (m Message) payload(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMalformedMessage, m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformedMessage, m.Type, err)
	}
	return nil
}

func newMessage(sender string, kind Kind, data any) Message {
	raw, err := json.Marshal(data)
	if err != nil {
		// payload types above always marshal
		panic(err)
	}
	return Message{SenderID: sender, Type: kind, Data: raw}
}
