package cursor

import "time"

const DefaultTweenDuration = 200 * time.Millisecond

// Tween drives Interpolate over a fixed duration. It has no timer of its own;
// the owner calls Advance with the elapsed time.
type Tween struct {
	Duration time.Duration

	prev    Roster
	curr    Roster
	elapsed time.Duration
}

func NewTween(d time.Duration) *Tween {
	if d <= 0 {
		d = DefaultTweenDuration
	}
	return &Tween{Duration: d, prev: Roster{}, curr: Roster{}, elapsed: d}
}

// Set starts a new transition towards next, beginning at whatever Value
// currently shows so a restart never jumps backwards.
func (tw *Tween) Set(next Roster) {
	tw.prev = tw.Value()
	tw.curr = next
	tw.elapsed = 0
}

// Advance moves the transition forward by dt and reports whether Value changed.
func (tw *Tween) Advance(dt time.Duration) bool {
	if !tw.Animating() || dt <= 0 {
		return false
	}
	tw.elapsed += dt
	if tw.elapsed > tw.Duration {
		tw.elapsed = tw.Duration
	}
	return true
}

func (tw *Tween) Progress() float64 {
	if tw.Duration <= 0 || tw.elapsed >= tw.Duration {
		return 1
	}
	return float64(tw.elapsed) / float64(tw.Duration)
}

func (tw *Tween) Animating() bool {
	return tw.Progress() < 1
}

func (tw *Tween) Value() Roster {
	t := tw.Progress()
	if t >= 1 {
		return tw.curr.Clone()
	}
	return Interpolate(tw.prev, tw.curr, t)
}

func (tw *Tween) Target() Roster {
	return tw.curr.Clone()
}

// Reset jumps to an empty roster with no transition in flight.
func (tw *Tween) Reset() {
	tw.prev = Roster{}
	tw.curr = Roster{}
	tw.elapsed = tw.Duration
}
