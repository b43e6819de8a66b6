package client

import (
	"log/slog"
	"time"

	"cursorparty-presence-server/cursor"
	"cursorparty-presence-server/protocol"
	"cursorparty-presence-server/throttle"
)

// Limiter shapes outbound traffic: cursor moves go through a leading-edge
// throttle, clicks are sent as they come. The sink reports false when the
// socket cannot take the frame; such frames are dropped.
type Limiter struct {
	moves    *throttle.Throttle[cursor.Position]
	sink     func([]byte) bool
	deadline time.Time
	logger   *slog.Logger
}

func NewLimiter(window time.Duration, sink func([]byte) bool, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		moves:  throttle.New[cursor.Position](window),
		sink:   sink,
		logger: logger,
	}
}

func (l *Limiter) Move(p cursor.Position, now time.Time) {
	l.apply(l.moves.OnEvent(p, now))
}

func (l *Limiter) Click(p cursor.Position) {
	l.emit(protocol.Clicked(p))
}

// Fire is called when the timer armed for Deadline goes off.
func (l *Limiter) Fire(now time.Time) {
	l.apply(l.moves.OnTimerFire(now))
}

// Deadline is when Fire should next run, if a coalesced move is waiting.
func (l *Limiter) Deadline() (time.Time, bool) {
	return l.deadline, !l.deadline.IsZero()
}

func (l *Limiter) Reset() {
	l.moves.Reset()
	l.deadline = time.Time{}
}

func (l *Limiter) apply(d throttle.Decision[cursor.Position]) {
	l.deadline = d.FireAt
	if d.Send {
		l.emit(protocol.CursorUpdated(d.Value))
	}
}

func (l *Limiter) emit(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		l.logger.Warn("marshal error", "type", msg.Type, "error", err)
		return
	}
	if !l.sink(data) {
		l.logger.Debug("send dropped", "type", msg.Type)
	}
}
