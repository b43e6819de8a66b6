package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cursorparty-presence-server/domain"
	"cursorparty-presence-server/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	DefaultMaxMessageSize = 4096
	DefaultSendBuffer     = 256
)

var ErrConnClosed = errors.New("connection closed")

type Options struct {
	MaxMessageSize int64
	SendBuffer     int
	// CloseOnViolation closes a connection that sends a kind it may not relay.
	CloseOnViolation bool
}

type Conn struct {
	id          string
	room        string
	ws          *websocket.Conn
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	opts        Options
	broadcaster domain.Broadcaster
	handler     domain.MessageHandler
}

func NewConn(id, room string, ws *websocket.Conn, b domain.Broadcaster, h domain.MessageHandler, opts Options) *Conn {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	return &Conn{
		id:          id,
		room:        room,
		ws:          ws,
		send:        make(chan []byte, opts.SendBuffer),
		done:        make(chan struct{}),
		opts:        opts,
		broadcaster: b,
		handler:     h,
	}
}

func (c *Conn) ID() string   { return c.id }
func (c *Conn) Room() string { return c.room }

// Send queues data without blocking. A full buffer or a closed connection
// drops the frame and reports an error.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.ws.Close()
}

func (c *Conn) Start() {
	c.broadcaster.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.broadcaster.Unregister(c)
		c.Close()
	}()

	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			slog.Debug("ignoring non-text frame", "clientId", c.id, "frameType", messageType)
			continue
		}

		if err := c.handler.Handle(c, data); err != nil {
			if !c.handleError(err) {
				return
			}
		}
	}
}

// handleError logs a rejected frame and reports whether to keep reading.
func (c *Conn) handleError(err error) bool {
	if errors.Is(err, protocol.ErrUnknownKind) {
		slog.Warn("protocol violation", "room", c.room, "clientId", c.id, "error", err)
		if c.opts.CloseOnViolation {
			msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown message kind")
			c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return false
		}
		return true
	}
	slog.Warn("invalid message", "room", c.room, "clientId", c.id, "error", err)
	return true
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
