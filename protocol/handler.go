package protocol

import (
	"fmt"
	"log/slog"

	"cursorparty-presence-server/domain"
)

type Handler struct {
	broadcaster domain.Broadcaster
}

func NewHandler(b domain.Broadcaster) *Handler {
	return &Handler{broadcaster: b}
}

// Handle relays one client frame to the sender's room with senderId set to
// the sending connection. Only cursorUpdated and clicked may be relayed; any
// other kind is ErrUnknownKind and nothing is broadcast.
func (h *Handler) Handle(conn domain.Connection, data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		return err
	}
	if !msg.Type.Relayable() {
		return fmt.Errorf("%w: %q is not relayable", ErrUnknownKind, msg.Type)
	}
	if _, err := msg.Point(); err != nil {
		return err
	}

	msg.SenderID = conn.ID()
	out, err := Encode(msg)
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return err
	}

	h.broadcaster.Broadcast(conn, out)
	return nil
}
