package ws

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/chesschain-go/internal/dependencies/random"
	"github.com/mcoot/chesschain-go/internal/registry"
)

// Handler receives the frames and lifecycle of every connection
type Handler interface {
	HandleMessage(ctx context.Context, ch registry.Channel, data []byte)
	HandleClose(ch registry.Channel)
}

// Config holds websocket timing and buffer limits
type Config struct {
	// WriteWait bounds a single frame write
	WriteWait time.Duration
	// PongWait is how long the peer may stay silent before the connection is dropped
	PongWait time.Duration
	// PingPeriod must be shorter than PongWait
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
	// AllowedOrigins lists accepted Origin values, either full origins
	// ("https://chess.example") or bare hosts. Empty means same-origin only
	// and "*" accepts any. Requests without an Origin header are always accepted.
	AllowedOrigins []string
}

// DefaultConfig returns the limits used by the server
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	}
}

// Server upgrades HTTP requests to websocket connections and pumps frames
// between them and a Handler
type Server struct {
	upgrader websocket.Upgrader
	handler  Handler
	random   random.Random
	cfg      Config
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// NewServer creates a websocket Server
func NewServer(handler Handler, rnd random.Random, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		handler: handler,
		random:  rnd,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "websocket")),
		conns:   make(map[*Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and blocks until the connection ends
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written an HTTP error
		s.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	conn := newConn(s.random.NewID(), wsConn, s.cfg, s.logger)
	s.track(conn)
	s.logger.Info("websocket connected",
		slog.String("channel_id", conn.ID()),
		slog.String("remote_addr", r.RemoteAddr))

	go conn.writePump()

	ctx := context.WithoutCancel(r.Context())
	conn.readPump(func(data []byte) {
		s.handler.HandleMessage(ctx, conn, data)
	})

	s.handler.HandleClose(conn)
	_ = conn.Close()
	s.untrack(conn)
	s.logger.Info("websocket disconnected",
		slog.String("channel_id", conn.ID()),
		slog.Duration("connection_duration", time.Since(conn.connectedAt)))
}

// originChecker returns nil for an empty list so the upgrader applies its
// same-origin check
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(o), "/"))] = struct{}{}
	}
	if _, ok := set["*"]; ok {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if _, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
			return true
		}
		_, ok := set[strings.ToLower(u.Host)]
		return ok
	}
}

// Shutdown closes every open connection
func (s *Server) Shutdown() {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	s.logger.Info("websocket server stopped", slog.Int("closed_connections", len(conns)))
}

// ConnectionCount returns the number of open connections
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Server) untrack(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}
