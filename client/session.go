package client

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"cursorparty-presence-server/cursor"
	"cursorparty-presence-server/protocol"
)

// Session is one live membership of a room. All state changes happen on a
// single goroutine; the accessors return the most recently published copy.
type Session struct {
	cfg    Config
	room   string
	logger *slog.Logger
	conn   *conn

	ctx     context.Context
	cancel  context.CancelFunc
	writeCh chan []byte
	moves   chan cursor.Position
	clicks  chan cursor.Position
	changes chan struct{}
	done    chan struct{}

	self    atomic.Value
	cursors atomic.Pointer[cursor.Roster]
	markers atomic.Pointer[[]cursor.Position]

	closeOnce sync.Once
}

// Join dials cfg.URL for room ("" means DefaultRoom) and starts the session.
// The returned session runs until Close is called or the server goes away.
func Join(ctx context.Context, cfg Config, room string) (*Session, error) {
	cfg = cfg.withDefaults()
	if cfg.URL == "" {
		return nil, errors.New("empty URL")
	}
	if room == "" {
		room = DefaultRoom
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()

	dialCtx := ctx
	if cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}

	ws, _, err := websocket.Dial(dialCtx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:     cfg,
		room:    room,
		logger:  cfg.Logger.With("room", room),
		conn:    newConn(ws, cfg.WriteTimeout),
		ctx:     runCtx,
		cancel:  cancel,
		writeCh: make(chan []byte, cfg.SendBuffer),
		moves:   make(chan cursor.Position),
		clicks:  make(chan cursor.Position),
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.publish(NewStore(cfg.TweenDuration))

	inbound := make(chan []byte, 64)
	go s.readLoop(inbound)
	go s.writeLoop()
	go s.run(inbound)
	return s, nil
}

func (s *Session) Room() string { return s.room }

// Self is this connection's id as assigned by the server; empty until the
// room snapshot has arrived.
func (s *Session) Self() string {
	id, _ := s.self.Load().(string)
	return id
}

// Cursors returns the interpolated positions of every peer.
func (s *Session) Cursors() cursor.Roster {
	return (*s.cursors.Load()).Clone()
}

// Clicks returns the click markers currently on display.
func (s *Session) Clicks() []cursor.Position {
	m := *s.markers.Load()
	out := make([]cursor.Position, len(m))
	copy(out, m)
	return out
}

// Changes signals after Cursors or Clicks changed. Signals coalesce.
func (s *Session) Changes() <-chan struct{} { return s.changes }

// Done is closed once the session has shut down and its timers are cleared.
func (s *Session) Done() <-chan struct{} { return s.done }

// Move reports the local pointer position. Moves are throttled.
func (s *Session) Move(p cursor.Position) {
	select {
	case s.moves <- p:
	case <-s.done:
	}
}

// Click reports a local click. Clicks are sent immediately.
func (s *Session) Click(p cursor.Position) {
	select {
	case s.clicks <- p:
	case <-s.done:
	}
}

// Close leaves the room and waits for the session to shut down.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close(websocket.StatusNormalClosure, "client close")
	})
	s.cancel()
	<-s.done
	if err != nil && !errors.Is(err, net.ErrClosed) && !isExpectedDisconnect(context.Background(), err) {
		return err
	}
	return nil
}

func (s *Session) run(inbound <-chan []byte) {
	store := NewStore(s.cfg.TweenDuration)
	limiter := NewLimiter(s.cfg.ThrottleWindow, s.enqueue, s.logger)

	frames := newFrameClock(s.cfg.FrameInterval)
	var (
		throttleTimer *time.Timer
		throttleC     <-chan time.Time
		expired       = make(chan cursor.Position)
		markerTimers  = map[cursor.Position]*time.Timer{}
	)

	rearm := func() {
		if throttleTimer != nil {
			throttleTimer.Stop()
			throttleTimer, throttleC = nil, nil
		}
		if at, ok := limiter.Deadline(); ok {
			throttleTimer = time.NewTimer(time.Until(at))
			throttleC = throttleTimer.C
		}
	}

	defer func() {
		frames.Stop()
		if throttleTimer != nil {
			throttleTimer.Stop()
		}
		for _, t := range markerTimers {
			t.Stop()
		}
		limiter.Reset()
		store.Reset()
		s.publish(store)
		s.closeOnce.Do(func() { _ = s.conn.CloseNow() })
		s.cancel()
		close(s.done)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return

		case data, ok := <-inbound:
			if !ok {
				return
			}
			change, err := s.apply(store, data)
			if err != nil {
				continue
			}
			if change.Roster {
				if store.Animating() {
					frames.Start(time.Now())
				} else {
					frames.Stop()
				}
			}
			if p := change.Marker; p != nil {
				pos := *p
				markerTimers[pos] = time.AfterFunc(s.cfg.ClickDuration, func() {
					select {
					case expired <- pos:
					case <-s.ctx.Done():
					}
				})
			}
			if change.Roster || change.Marker != nil {
				s.publish(store)
			}

		case pos := <-expired:
			delete(markerTimers, pos)
			if store.RemoveMarker(pos) {
				s.publish(store)
			}

		case p := <-s.moves:
			limiter.Move(p, time.Now())
			rearm()

		case p := <-s.clicks:
			limiter.Click(p)

		case now := <-throttleC:
			throttleTimer, throttleC = nil, nil
			limiter.Fire(now)
			rearm()

		case now := <-frames.C():
			if store.Advance(frames.Tick(now)) {
				s.publish(store)
			}
			if !store.Animating() {
				frames.Stop()
			}
		}
	}
}

// apply decodes one frame into the store. Bad frames are logged and skipped.
func (s *Session) apply(store *Store, data []byte) (Change, error) {
	msg, err := protocol.Decode(data)
	if err == nil {
		var change Change
		change, err = store.Apply(msg)
		if err == nil {
			return change, nil
		}
	}
	if errors.Is(err, protocol.ErrUnknownKind) {
		s.logger.Warn("unexpected message", "type", msg.Type, "senderId", msg.SenderID, "error", err)
	} else {
		s.logger.Warn("invalid message", "error", err)
	}
	return Change{}, err
}

func (s *Session) publish(store *Store) {
	cursors := store.Cursors()
	markers := store.Markers()
	s.cursors.Store(&cursors)
	s.markers.Store(&markers)
	s.self.Store(store.Self())

	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// enqueue hands a frame to the write loop without blocking.
func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	select {
	case s.writeCh <- data:
		return true
	default:
		return false
	}
}

func (s *Session) readLoop(inbound chan<- []byte) {
	defer close(inbound)
	for {
		typ, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if !isExpectedDisconnect(s.ctx, err) {
				s.logger.Warn("read loop exit", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		select {
		case inbound <- data:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case data := <-s.writeCh:
			if err := s.conn.Write(s.ctx, data); err != nil {
				if !isExpectedDisconnect(s.ctx, err) {
					s.logger.Warn("write loop exit", "error", err)
				}
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}
