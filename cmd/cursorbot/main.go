package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"cursorparty-presence-server/client"
	"cursorparty-presence-server/cursor"
)

func main() {
	if err := run(); err != nil {
		slog.Error("cursorbot failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	url := flag.String("url", "ws://localhost:8080/ws", "presence server websocket URL")
	room := flag.String("room", "", "room to join (empty joins "+client.DefaultRoom+")")
	radius := flag.Float64("radius", 150, "radius of the traced circle in pixels")
	duration := flag.Duration("duration", 0, "how long to stay (0 runs until interrupted)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, *duration)
		defer stop()
	}

	cfg := client.DefaultConfig()
	cfg.URL = *url
	cfg.Logger = logger

	session, err := client.Join(ctx, cfg, *room)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	defer session.Close()
	logger.Info("joined", "room", session.Room())

	move := time.NewTicker(10 * time.Millisecond)
	defer move.Stop()
	click := time.NewTicker(2 * time.Second)
	defer click.Stop()

	start := time.Now()
	center := cursor.Position{X: *radius * 2, Y: *radius * 2}
	last := ""

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Done():
			return fmt.Errorf("disconnected from server")
		case <-move.C:
			session.Move(onCircle(center, *radius, time.Since(start)))
		case <-click.C:
			session.Click(onCircle(center, *radius, time.Since(start)))
		case <-session.Changes():
			if line := describe(session.Cursors()); line != last {
				last = line
				logger.Debug("roster", "self", session.Self(), "peers", line, "clicks", len(session.Clicks()))
			}
		}
	}
}

func onCircle(center cursor.Position, radius float64, elapsed time.Duration) cursor.Position {
	angle := elapsed.Seconds() * math.Pi / 2
	return cursor.Position{
		X: math.Round(center.X + radius*math.Cos(angle)),
		Y: math.Round(center.Y + radius*math.Sin(angle)),
	}
}

func describe(roster cursor.Roster) string {
	ids := make([]string, 0, len(roster))
	for id := range roster {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		p := roster[id]
		fmt.Fprintf(&b, "%s=(%.0f,%.0f) ", id[:min(8, len(id))], p.X, p.Y)
	}
	return b.String()
}
