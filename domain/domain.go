package domain

type Connection interface {
	ID() string
	Room() string
	Send(data []byte) error
	Close() error
}

// Broadcaster owns room membership. Register and Unregister are the only
// membership mutators; Broadcast fans data out to the sender's room, skipping
// the sender.
type Broadcaster interface {
	Register(conn Connection)
	Unregister(conn Connection)
	Broadcast(sender Connection, data []byte)
	Stats() (rooms, clients int)
}

type MessageHandler interface {
	Handle(conn Connection, data []byte) error
}
