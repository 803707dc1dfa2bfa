package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/chesschain-go/internal/api/handler"
	"github.com/mcoot/chesschain-go/internal/api/middleware"
	"github.com/mcoot/chesschain-go/internal/services/session"
	"github.com/mcoot/chesschain-go/internal/services/signature"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Store    *session.Store
	Archive  handler.Archive
	Verifier signature.Verifier
	Stats    handler.Stats
	// WebSocket is mounted at /ws when set
	WebSocket http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	sessionHandler := handler.NewSessionHandler(cfg.Store, cfg.Archive)
	signatureHandler := handler.NewSignatureHandler(cfg.Verifier)
	healthHandler := handler.NewHealthHandler(cfg.Stats)

	// Create middleware
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware; logging is outermost so it sees
	// the status written by recovery
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	// Session routes
	api.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/verify", sessionHandler.Verify).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/moves/{sequence:[0-9]+}/proof", sessionHandler.Proof).Methods(http.MethodGet)

	// Signature routes
	api.HandleFunc("/signatures/verify", signatureHandler.Verify).Methods(http.MethodPost)

	// Health check endpoint
	api.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	if cfg.WebSocket != nil {
		r.Handle("/ws", loggingMiddleware(cfg.WebSocket)).Methods(http.MethodGet)
	}

	return r
}
