package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cursorparty-presence-server/config"
	"cursorparty-presence-server/hub"
	"cursorparty-presence-server/protocol"
	ws "cursorparty-presence-server/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(os.Stdout, cfg)

	broadcaster := hub.New()
	handler := protocol.NewHandler(broadcaster)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newMux(cfg, broadcaster, handler),
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "defaultRoom", cfg.DefaultRoom)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(w io.Writer, cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

func newMux(cfg config.Config, broadcaster *hub.Hub, handler *protocol.Handler) *http.ServeMux {
	opts := ws.Options{
		MaxMessageSize:   cfg.MaxMessageSize,
		SendBuffer:       cfg.SendBuffer,
		CloseOnViolation: cfg.CloseOnViolation,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", wsHandler(cfg.DefaultRoom, opts, broadcaster, handler, func(r *http.Request) string {
		return r.URL.Query().Get("room")
	}))
	mux.HandleFunc("GET /parties/main/{room}", wsHandler(cfg.DefaultRoom, opts, broadcaster, handler, func(r *http.Request) string {
		return r.PathValue("room")
	}))
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /stats", statsHandler(broadcaster))
	return mux
}

func wsHandler(defaultRoom string, opts ws.Options, broadcaster *hub.Hub, handler *protocol.Handler, roomOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		room := roomOf(r)
		if room == "" {
			room = defaultRoom
		}

		wsConn := ws.NewConn(uuid.New().String(), room, conn, broadcaster, handler, opts)
		wsConn.Start()
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(broadcaster *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, clients := broadcaster.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"rooms": rooms, "clients": clients})
	}
}
