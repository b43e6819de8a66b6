package client

import (
	"log/slog"
	"time"

	"cursorparty-presence-server/cursor"
	"cursorparty-presence-server/throttle"
)

// DefaultRoom is joined when Join is given an empty room name.
const DefaultRoom = "home"

// Config controls how a Session connects and paces itself.
// Use DefaultConfig() as a starting point and set URL.
type Config struct {
	URL              string // e.g. ws://localhost:8080/ws
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	ThrottleWindow time.Duration // minimum gap between cursor sends
	TweenDuration  time.Duration // length of one roster transition
	ClickDuration  time.Duration // how long a click marker stays visible
	FrameInterval  time.Duration // tween tick rate

	SendBuffer int
	Logger     *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ThrottleWindow:   throttle.DefaultWindow,
		TweenDuration:    cursor.DefaultTweenDuration,
		ClickDuration:    200 * time.Millisecond,
		FrameInterval:    16 * time.Millisecond,
		SendBuffer:       64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ThrottleWindow <= 0 {
		c.ThrottleWindow = d.ThrottleWindow
	}
	if c.TweenDuration <= 0 {
		c.TweenDuration = d.TweenDuration
	}
	if c.ClickDuration <= 0 {
		c.ClickDuration = d.ClickDuration
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = d.FrameInterval
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
