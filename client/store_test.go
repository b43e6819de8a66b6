package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cursorparty-presence-server/cursor"
	"cursorparty-presence-server/protocol"
)

func moved(sender string, x, y float64) protocol.Message {
	msg := protocol.CursorUpdated(cursor.Position{X: x, Y: y})
	msg.SenderID = sender
	return msg
}

func clicked(sender string, x, y float64) protocol.Message {
	msg := protocol.Clicked(cursor.Position{X: x, Y: y})
	msg.SenderID = sender
	return msg
}

func settle(s *Store) {
	s.Advance(time.Hour)
}

func TestStore_SnapshotIsIdempotent(t *testing.T) {
	s := NewStore(200 * time.Millisecond)
	snapshot := protocol.Connected("me", []string{"a", "b"})

	for i := 0; i < 2; i++ {
		change, err := s.Apply(snapshot)
		require.NoError(t, err)
		assert.True(t, change.Roster)
	}

	want := cursor.Roster{"a": {}, "b": {}}
	assert.Equal(t, want, s.Target())
	assert.Equal(t, want, s.Cursors())
	assert.Equal(t, "me", s.Self())
}

func TestStore_SnapshotResetsKnownPeer(t *testing.T) {
	s := NewStore(200 * time.Millisecond)
	_, err := s.Apply(protocol.Connected("me", []string{"a"}))
	require.NoError(t, err)
	_, err = s.Apply(moved("a", 30, 40))
	require.NoError(t, err)

	_, err = s.Apply(protocol.Connected("me", []string{"a"}))
	require.NoError(t, err)

	assert.Equal(t, cursor.Position{}, s.Target()["a"])
}

func TestStore_Membership(t *testing.T) {
	s := NewStore(200 * time.Millisecond)
	_, err := s.Apply(protocol.Connected("me", nil))
	require.NoError(t, err)

	change, err := s.Apply(protocol.NewConnection("a"))
	require.NoError(t, err)
	assert.True(t, change.Roster)

	_, err = s.Apply(moved("a", 5, 5))
	require.NoError(t, err)
	settle(s)

	// a duplicate announcement must not reset the known position
	change, err = s.Apply(protocol.NewConnection("a"))
	require.NoError(t, err)
	assert.False(t, change.Roster)
	assert.Equal(t, cursor.Position{X: 5, Y: 5}, s.Cursors()["a"])

	change, err = s.Apply(protocol.NewConnection("me"))
	require.NoError(t, err)
	assert.False(t, change.Roster)
	assert.NotContains(t, s.Target(), "me")

	change, err = s.Apply(protocol.Disconnected("a"))
	require.NoError(t, err)
	assert.True(t, change.Roster)
	assert.NotContains(t, s.Cursors(), "a", "removal is not animated")

	change, err = s.Apply(protocol.Disconnected("a"))
	require.NoError(t, err)
	assert.False(t, change.Roster)
}

func TestStore_CursorUpdateTweens(t *testing.T) {
	s := NewStore(200 * time.Millisecond)
	_, err := s.Apply(protocol.Connected("me", []string{"a"}))
	require.NoError(t, err)
	settle(s)

	_, err = s.Apply(moved("a", 10, 10))
	require.NoError(t, err)
	assert.True(t, s.Animating())
	assert.Equal(t, cursor.Position{}, s.Cursors()["a"])

	require.True(t, s.Advance(100*time.Millisecond))
	assert.Equal(t, cursor.Position{X: 5, Y: 5}, s.Cursors()["a"])

	// a new update mid-flight continues from where the cursor is drawn
	_, err = s.Apply(moved("a", 15, 5))
	require.NoError(t, err)
	assert.Equal(t, cursor.Position{X: 5, Y: 5}, s.Cursors()["a"])

	s.Advance(100 * time.Millisecond)
	assert.Equal(t, cursor.Position{X: 10, Y: 5}, s.Cursors()["a"])

	settle(s)
	assert.False(t, s.Animating())
	assert.Equal(t, cursor.Position{X: 15, Y: 5}, s.Cursors()["a"])
}

func TestStore_CursorUpdateFromUnknownPeer(t *testing.T) {
	s := NewStore(200 * time.Millisecond)

	_, err := s.Apply(moved("late", 3, 4))
	require.NoError(t, err)

	assert.Equal(t, cursor.Position{X: 3, Y: 4}, s.Cursors()["late"])
}

func TestStore_ClickDedup(t *testing.T) {
	s := NewStore(200 * time.Millisecond)

	change, err := s.Apply(clicked("a", 1, 2))
	require.NoError(t, err)
	require.NotNil(t, change.Marker)
	assert.Equal(t, cursor.Position{X: 1, Y: 2}, *change.Marker)
	assert.False(t, change.Roster)

	change, err = s.Apply(clicked("b", 1, 2))
	require.NoError(t, err)
	assert.Nil(t, change.Marker)
	assert.Len(t, s.Markers(), 1)

	change, err = s.Apply(clicked("a", 3, 4))
	require.NoError(t, err)
	require.NotNil(t, change.Marker)
	assert.Equal(t, []cursor.Position{{X: 1, Y: 2}, {X: 3, Y: 4}}, s.Markers())

	// each marker expires on its own
	assert.True(t, s.RemoveMarker(cursor.Position{X: 1, Y: 2}))
	assert.Equal(t, []cursor.Position{{X: 3, Y: 4}}, s.Markers())
	assert.False(t, s.RemoveMarker(cursor.Position{X: 1, Y: 2}))

	change, err = s.Apply(clicked("a", 1, 2))
	require.NoError(t, err)
	assert.NotNil(t, change.Marker, "an expired point can be clicked again")
}

func TestStore_RejectsBadMessages(t *testing.T) {
	tests := []struct {
		name    string
		msg     protocol.Message
		wantErr error
	}{
		{name: "unknown kind", msg: protocol.Message{Type: "wave", Data: []byte(`{}`)}, wantErr: protocol.ErrUnknownKind},
		{name: "update without sender", msg: protocol.CursorUpdated(cursor.Position{X: 1, Y: 1}), wantErr: protocol.ErrMalformedMessage},
		{name: "member without id", msg: protocol.Message{Type: protocol.KindNewConnection, Data: []byte(`{}`)}, wantErr: protocol.ErrMalformedMessage},
		{name: "click without data", msg: protocol.Message{Type: protocol.KindClicked}, wantErr: protocol.ErrMalformedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(200 * time.Millisecond)
			_, err := s.Apply(protocol.Connected("me", []string{"a"}))
			require.NoError(t, err)
			before := s.Target()

			change, err := s.Apply(tt.msg)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, Change{}, change)
			assert.Equal(t, before, s.Target())
			assert.Empty(t, s.Markers())

			// later messages still apply
			_, err = s.Apply(moved("a", 1, 1))
			assert.NoError(t, err)
		})
	}
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(200 * time.Millisecond)
	_, _ = s.Apply(protocol.Connected("me", []string{"a"}))
	_, _ = s.Apply(clicked("a", 1, 1))

	s.Reset()

	assert.Empty(t, s.Cursors())
	assert.Empty(t, s.Markers())
	assert.Empty(t, s.Self())
	assert.False(t, s.Animating())
}
