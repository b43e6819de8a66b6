package hub

import (
	"log/slog"
	"sync"

	"cursorparty-presence-server/domain"
	"cursorparty-presence-server/protocol"
)

// room serializes its events: mu is held for a whole membership change or
// relay, including the sends it causes.
type room struct {
	clients map[string]domain.Connection
	mu      sync.Mutex
}

type Hub struct {
	rooms map[string]*room
	mu    sync.RWMutex
}

func New() *Hub {
	return &Hub{
		rooms: make(map[string]*room),
	}
}

// Register adds conn to its room, tells the existing members about it and
// sends conn a snapshot of everyone who was already there.
func (h *Hub) Register(conn domain.Connection) {
	for {
		r := h.getOrCreate(conn.Room())

		r.mu.Lock()
		if !h.attached(conn.Room(), r) {
			// room was removed while we waited for its lock
			r.mu.Unlock()
			continue
		}

		peers := make([]string, 0, len(r.clients))
		for id := range r.clients {
			peers = append(peers, id)
		}
		r.clients[conn.ID()] = conn
		count := len(r.clients)

		h.fanOut(r, conn.ID(), protocol.NewConnection(conn.ID()))
		h.send(conn, protocol.Connected(conn.ID(), peers))
		r.mu.Unlock()

		slog.Info("client connected", "room", conn.Room(), "clientId", conn.ID(), "clients", count)
		return
	}
}

// Unregister removes conn and tells the remaining members. Unknown
// connections are ignored so a connection is only ever announced as gone once.
func (h *Hub) Unregister(conn domain.Connection) {
	h.mu.RLock()
	r, exists := h.rooms[conn.Room()]
	h.mu.RUnlock()

	if !exists {
		return
	}

	r.mu.Lock()
	if current, ok := r.clients[conn.ID()]; !ok || current != conn {
		r.mu.Unlock()
		return
	}
	delete(r.clients, conn.ID())
	count := len(r.clients)
	h.fanOut(r, conn.ID(), protocol.Disconnected(conn.ID()))

	if count == 0 {
		h.mu.Lock()
		if h.rooms[conn.Room()] == r {
			delete(h.rooms, conn.Room())
		}
		h.mu.Unlock()
	}
	r.mu.Unlock()

	slog.Info("client disconnected", "room", conn.Room(), "clientId", conn.ID(), "clients", count)
	if count == 0 {
		slog.Info("room removed", "room", conn.Room())
	}
}

func (h *Hub) Broadcast(sender domain.Connection, data []byte) {
	h.mu.RLock()
	r, exists := h.rooms[sender.Room()]
	h.mu.RUnlock()

	if !exists {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// an evicted or departed connection no longer speaks for the room
	if current, ok := r.clients[sender.ID()]; !ok || current != sender {
		return
	}

	h.broadcastLocked(r, sender.ID(), data)
}

// Stats never holds h.mu while waiting on a room lock; room locks are always
// taken before h.mu.
func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	all := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		all = append(all, r)
	}
	h.mu.RUnlock()

	rooms = len(all)
	for _, r := range all {
		r.mu.Lock()
		clients += len(r.clients)
		r.mu.Unlock()
	}
	return rooms, clients
}

// Members lists the ids currently attached to roomName.
func (h *Hub) Members(roomName string) []string {
	h.mu.RLock()
	r, exists := h.rooms[roomName]
	h.mu.RUnlock()

	if !exists {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) getOrCreate(name string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, exists := h.rooms[name]
	if !exists {
		r = &room{clients: make(map[string]domain.Connection)}
		h.rooms[name] = r
	}
	return r
}

func (h *Hub) attached(name string, r *room) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[name] == r
}

func (h *Hub) fanOut(r *room, exclude string, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		slog.Warn("marshal error", "type", msg.Type, "error", err)
		return
	}
	h.broadcastLocked(r, exclude, data)
}

func (h *Hub) send(conn domain.Connection, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		slog.Warn("marshal error", "type", msg.Type, "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Debug("send dropped", "room", conn.Room(), "clientId", conn.ID(), "error", err)
	}
}

// broadcastLocked must be called with r.mu held. A member whose send fails is
// evicted asynchronously, once the current event has finished, and its
// connection is closed.
func (h *Hub) broadcastLocked(r *room, exclude string, data []byte) {
	for id, conn := range r.clients {
		if id == exclude {
			continue
		}
		if err := conn.Send(data); err != nil {
			slog.Debug("send dropped", "room", conn.Room(), "clientId", id, "error", err)
			go func(c domain.Connection) {
				h.Unregister(c)
				c.Close()
			}(conn)
		}
	}
}
