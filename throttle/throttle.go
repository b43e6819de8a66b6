// Package throttle implements a leading-edge throttle as a plain state
// machine. The caller owns the clock and the single timer; every transition
// takes the current time and returns what to do next.
package throttle

import "time"

const DefaultWindow = 50 * time.Millisecond

// Decision is the outcome of a transition. When Send is true Value must be
// transmitted now. A non-zero FireAt asks the caller to (re)arm its timer for
// that instant; a zero FireAt means no timer is needed.
type Decision[T any] struct {
	Send   bool
	Value  T
	FireAt time.Time
}

type Throttle[T any] struct {
	Window time.Duration

	lastSend   time.Time
	hasSent    bool
	pending    T
	hasPending bool
}

func New[T any](window time.Duration) *Throttle[T] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Throttle[T]{Window: window}
}

// OnEvent records v. Outside a cool-down it is sent immediately; inside one it
// replaces any pending value and is due when the window closes.
func (t *Throttle[T]) OnEvent(v T, now time.Time) Decision[T] {
	if t.idle(now) {
		t.clearPending()
		t.markSent(now)
		return Decision[T]{Send: true, Value: v}
	}
	t.pending = v
	t.hasPending = true
	return Decision[T]{FireAt: t.windowEnd()}
}

// OnTimerFire flushes the pending value if a full window has passed since the
// last send. An early fire re-arms for the end of the window.
func (t *Throttle[T]) OnTimerFire(now time.Time) Decision[T] {
	if !t.hasPending {
		return Decision[T]{}
	}
	if !t.idle(now) {
		return Decision[T]{FireAt: t.windowEnd()}
	}
	v := t.pending
	t.clearPending()
	t.markSent(now)
	return Decision[T]{Send: true, Value: v}
}

func (t *Throttle[T]) Pending() (T, bool) {
	return t.pending, t.hasPending
}

// Reset forgets the pending value and the cool-down.
func (t *Throttle[T]) Reset() {
	t.clearPending()
	t.hasSent = false
	t.lastSend = time.Time{}
}

func (t *Throttle[T]) idle(now time.Time) bool {
	return !t.hasSent || now.Sub(t.lastSend) >= t.Window
}

func (t *Throttle[T]) windowEnd() time.Time {
	return t.lastSend.Add(t.Window)
}

func (t *Throttle[T]) markSent(now time.Time) {
	t.lastSend = now
	t.hasSent = true
}

func (t *Throttle[T]) clearPending() {
	var zero T
	t.pending = zero
	t.hasPending = false
}
