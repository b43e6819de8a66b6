package client

import "time"

// frameClock ticks only while a roster transition is in flight. A nil
// channel from C blocks forever, so an idle session never wakes for frames.
type frameClock struct {
	interval time.Duration
	ticker   *time.Ticker
	last     time.Time
}

func newFrameClock(interval time.Duration) *frameClock {
	return &frameClock{interval: interval}
}

func (f *frameClock) C() <-chan time.Time {
	if f.ticker == nil {
		return nil
	}
	return f.ticker.C
}

func (f *frameClock) Running() bool {
	return f.ticker != nil
}

// Start re-bases elapsed time at now and arms the ticker if it is idle.
func (f *frameClock) Start(now time.Time) {
	f.last = now
	if f.ticker == nil {
		f.ticker = time.NewTicker(f.interval)
	}
}

// Tick returns the time since the previous tick or Start.
func (f *frameClock) Tick(now time.Time) time.Duration {
	dt := now.Sub(f.last)
	f.last = now
	return dt
}

func (f *frameClock) Stop() {
	if f.ticker != nil {
		f.ticker.Stop()
		f.ticker = nil
	}
}
