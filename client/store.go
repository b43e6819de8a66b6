package client

import (
	"fmt"
	"time"

	"cursorparty-presence-server/cursor"
	"cursorparty-presence-server/protocol"
)

// Change reports what an Apply call touched.
type Change struct {
	Roster bool
	// Marker is set when a new click marker was added; the owner is
	// responsible for calling RemoveMarker with it once it expires.
	Marker *cursor.Position
}

// Store turns the broadcast stream into observable state: the roster of peer
// cursors, seen through a Tween, and the set of live click markers. It is not
// safe for concurrent use; a Session drives it from a single goroutine.
type Store struct {
	self    string
	roster  cursor.Roster
	tween   *cursor.Tween
	markers []cursor.Position
}

func NewStore(tweenDuration time.Duration) *Store {
	return &Store{
		roster: cursor.Roster{},
		tween:  cursor.NewTween(tweenDuration),
	}
}

func (s *Store) Apply(msg protocol.Message) (Change, error) {
	switch msg.Type {
	case protocol.KindConnected:
		ids, err := msg.Roster()
		if err != nil {
			return Change{}, err
		}
		if msg.SenderID != "" {
			s.self = msg.SenderID
		}
		s.mutate(func(r cursor.Roster) {
			for _, id := range ids {
				if id == s.self {
					continue
				}
				r[id] = cursor.Position{}
			}
		})
		return Change{Roster: true}, nil

	case protocol.KindNewConnection:
		id, err := msg.Member()
		if err != nil {
			return Change{}, err
		}
		if _, known := s.roster[id]; known || id == s.self {
			return Change{}, nil
		}
		s.mutate(func(r cursor.Roster) { r[id] = cursor.Position{} })
		return Change{Roster: true}, nil

	case protocol.KindDisconnected:
		id, err := msg.Member()
		if err != nil {
			return Change{}, err
		}
		if _, known := s.roster[id]; !known {
			return Change{}, nil
		}
		s.mutate(func(r cursor.Roster) { delete(r, id) })
		return Change{Roster: true}, nil

	case protocol.KindCursorUpdated:
		p, err := msg.Point()
		if err != nil {
			return Change{}, err
		}
		if msg.SenderID == "" {
			return Change{}, fmt.Errorf("%w: cursorUpdated without senderId", protocol.ErrMalformedMessage)
		}
		s.mutate(func(r cursor.Roster) { r[msg.SenderID] = p })
		return Change{Roster: true}, nil

	case protocol.KindClicked:
		p, err := msg.Point()
		if err != nil {
			return Change{}, err
		}
		if s.hasMarker(p) {
			return Change{}, nil
		}
		s.markers = append(s.markers, p)
		return Change{Marker: &p}, nil

	default:
		return Change{}, fmt.Errorf("%w: %q", protocol.ErrUnknownKind, msg.Type)
	}
}

// RemoveMarker drops the marker at exactly p. It is a no-op when no such
// marker exists.
func (s *Store) RemoveMarker(p cursor.Position) bool {
	for i, m := range s.markers {
		if m == p {
			s.markers = append(s.markers[:i], s.markers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the roster transition forward by dt.
func (s *Store) Advance(dt time.Duration) bool {
	return s.tween.Advance(dt)
}

func (s *Store) Animating() bool {
	return s.tween.Animating()
}

// Cursors returns the interpolated roster to render.
func (s *Store) Cursors() cursor.Roster {
	return s.tween.Value()
}

// Target returns the settled roster the transition is heading to.
func (s *Store) Target() cursor.Roster {
	return s.roster.Clone()
}

func (s *Store) Markers() []cursor.Position {
	out := make([]cursor.Position, len(s.markers))
	copy(out, s.markers)
	return out
}

// Self is this connection's own id, known once the snapshot has arrived.
func (s *Store) Self() string {
	return s.self
}

func (s *Store) Reset() {
	s.self = ""
	s.roster = cursor.Roster{}
	s.tween.Reset()
	s.markers = nil
}

func (s *Store) mutate(fn func(cursor.Roster)) {
	next := s.roster.Clone()
	fn(next)
	s.roster = next
	s.tween.Set(next.Clone())
}

func (s *Store) hasMarker(p cursor.Position) bool {
	for _, m := range s.markers {
		if m == p {
			return true
		}
	}
	return false
}
