package protocol

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cursorparty-presence-server/cursor"
	"cursorparty-presence-server/domain"
)

type mockConn struct {
	id   string
	room string
	sent [][]byte
	mu   sync.Mutex
}

func (m *mockConn) ID() string   { return m.id }
func (m *mockConn) Room() string { return m.room }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}

func (m *mockConn) Close() error { return nil }

func (m *mockConn) getSent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

type mockBroadcaster struct {
	broadcasts []broadcastCall
	mu         sync.Mutex
}

type broadcastCall struct {
	senderID string
	data     []byte
}

func (m *mockBroadcaster) Register(conn domain.Connection)   {}
func (m *mockBroadcaster) Unregister(conn domain.Connection) {}
func (m *mockBroadcaster) Stats() (int, int)                 { return 0, 0 }

func (m *mockBroadcaster) Broadcast(sender domain.Connection, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, broadcastCall{senderID: sender.ID(), data: data})
}

func (m *mockBroadcaster) getBroadcasts() []broadcastCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broadcasts
}

func TestHandler_Relay(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{name: "cursor update", msg: CursorUpdated(cursor.Position{X: 12, Y: 34})},
		{name: "click", msg: Clicked(cursor.Position{X: 1.5, Y: 2.5})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broadcaster := &mockBroadcaster{}
			handler := NewHandler(broadcaster)
			conn := &mockConn{id: "client1", room: "room1"}

			data, err := Encode(tt.msg)
			require.NoError(t, err)
			require.NoError(t, handler.Handle(conn, data))

			broadcasts := broadcaster.getBroadcasts()
			require.Len(t, broadcasts, 1)
			assert.Equal(t, "client1", broadcasts[0].senderID)

			relayed, err := Decode(broadcasts[0].data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg.Type, relayed.Type)
			assert.Equal(t, "client1", relayed.SenderID)

			want, _ := tt.msg.Point()
			got, err := relayed.Point()
			require.NoError(t, err)
			assert.Equal(t, want, got)

			assert.Empty(t, conn.getSent())
		})
	}
}

func TestHandler_OverwritesForgedSender(t *testing.T) {
	broadcaster := &mockBroadcaster{}
	handler := NewHandler(broadcaster)
	conn := &mockConn{id: "real", room: "room1"}

	raw := []byte(`{"senderId":"forged","type":"cursorUpdated","data":{"x":1,"y":2}}`)
	require.NoError(t, handler.Handle(conn, raw))

	broadcasts := broadcaster.getBroadcasts()
	require.Len(t, broadcasts, 1)

	relayed, err := Decode(broadcasts[0].data)
	require.NoError(t, err)
	assert.Equal(t, "real", relayed.SenderID)
}

func TestHandler_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "invalid json", data: "not json", wantErr: ErrMalformedMessage},
		{name: "unknown kind", data: `{"type":"ping","data":{}}`, wantErr: ErrUnknownKind},
		{name: "missing kind", data: `{"data":{"x":1,"y":1}}`, wantErr: ErrUnknownKind},
		{name: "forged membership", data: `{"type":"newConnection","data":{"id":"ghost"}}`, wantErr: ErrUnknownKind},
		{name: "forged snapshot", data: `{"type":"connected","data":{"connections":[]}}`, wantErr: ErrUnknownKind},
		{name: "point without coordinates", data: `{"type":"clicked","data":{"x":1}}`, wantErr: ErrMalformedMessage},
		{name: "point with wrong types", data: `{"type":"cursorUpdated","data":{"x":"a","y":1}}`, wantErr: ErrMalformedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broadcaster := &mockBroadcaster{}
			handler := NewHandler(broadcaster)
			conn := &mockConn{id: "client1", room: "room1"}

			err := handler.Handle(conn, []byte(tt.data))

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, conn.getSent())
			assert.Empty(t, broadcaster.getBroadcasts())
		})
	}
}
