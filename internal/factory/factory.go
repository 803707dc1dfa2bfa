package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/chesschain-go/internal/api"
	"github.com/mcoot/chesschain-go/internal/dependencies/clock"
	"github.com/mcoot/chesschain-go/internal/dependencies/random"
	"github.com/mcoot/chesschain-go/internal/gateway"
	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
	"github.com/mcoot/chesschain-go/internal/registry"
	"github.com/mcoot/chesschain-go/internal/services/archive"
	"github.com/mcoot/chesschain-go/internal/services/game"
	"github.com/mcoot/chesschain-go/internal/services/matchmaking"
	"github.com/mcoot/chesschain-go/internal/services/negotiation"
	"github.com/mcoot/chesschain-go/internal/services/session"
	"github.com/mcoot/chesschain-go/internal/services/signature"
	"github.com/mcoot/chesschain-go/internal/services/statesync"
	"github.com/mcoot/chesschain-go/internal/storage"
	"github.com/mcoot/chesschain-go/internal/storage/memory"
	redisstorage "github.com/mcoot/chesschain-go/internal/storage/redis"
	"github.com/mcoot/chesschain-go/internal/storage/sqlite"
	"github.com/mcoot/chesschain-go/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"
)

// DefaultSweepInterval is used when Config.SweepInterval is zero
const DefaultSweepInterval = 5 * time.Second

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	Logger *slog.Logger

	// Coordinator components
	Registry     *registry.Registry
	SessionStore *session.Store
	Queue        *matchmaking.Queue
	Matchmaker   *matchmaking.Matchmaker
	Verifier     signature.Verifier
	Checker      *signature.Checker

	// Services
	GameController *game.Controller
	Negotiation    *negotiation.Service
	StateSync      *statesync.Service
	Archive        *archive.Service

	// Transport
	Gateway   *gateway.Gateway
	WebSocket *ws.Server
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// SignaturePolicy decides what happens to moves whose signature cannot be checked
	// If empty, defaults to permissive
	SignaturePolicy signature.Policy
	// VerifierURL points at a remote verification service (optional)
	// If empty, signatures are verified in process
	VerifierURL string
	// SweepInterval is the matchmaking period
	SweepInterval time.Duration
	// Archive configures the post-completion hand-off
	// Zero fields take archive.DefaultConfig() values
	Archive archive.Config
	// WebSocket limits; a zero WriteWait means ws.DefaultConfig() timings,
	// keeping any AllowedOrigins given
	WebSocket ws.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	var verifier signature.Verifier = signature.NewEd25519Verifier()
	if cfg.VerifierURL != "" {
		verifier = signature.NewHTTPVerifier(cfg.VerifierURL, 5*time.Second)
	}

	return newWithDependencies(store, clock.New(), random.New(), verifier, withDefaults(cfg), logger), nil
}

func newStorage(cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		return sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'sqlite'", storageType)
	}
}

func withDefaults(cfg Config) Config {
	if cfg.SignaturePolicy == "" {
		cfg.SignaturePolicy = signature.PolicyPermissive
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	def := archive.DefaultConfig()
	if cfg.Archive.Retention <= 0 {
		cfg.Archive.Retention = def.Retention
	}
	if cfg.Archive.Timeout <= 0 {
		cfg.Archive.Timeout = def.Timeout
	}
	if cfg.WebSocket.WriteWait == 0 {
		origins := cfg.WebSocket.AllowedOrigins
		cfg.WebSocket = ws.DefaultConfig()
		cfg.WebSocket.AllowedOrigins = origins
	}
	return cfg
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	verifier signature.Verifier,
	cfg Config,
	logger *slog.Logger,
) *App {
	reg := registry.New(logger)
	sessions := session.NewStore(clk, rnd, logger)
	queue := matchmaking.NewQueue(clk)
	checker := signature.NewChecker(verifier, cfg.SignaturePolicy, logger)

	archiver := archive.New(store, sessions, clk, cfg.Archive, logger)
	gameController := game.NewController(sessions, checker, reg, archiver, reg, clk, logger)
	matchmaker := matchmaking.NewMatchmaker(queue, reg, gameController, cfg.SweepInterval, logger)
	negotiationService := negotiation.New(sessions, reg, archiver, clk, logger)
	stateSync := statesync.New(sessions, store, logger)

	gw := gateway.New(reg, queue, gameController, negotiationService, stateSync, logger)
	wsServer := ws.NewServer(gw, rnd, cfg.WebSocket, logger)

	app := &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Logger:         logger,
		Registry:       reg,
		SessionStore:   sessions,
		Queue:          queue,
		Matchmaker:     matchmaker,
		Verifier:       verifier,
		Checker:        checker,
		GameController: gameController,
		Negotiation:    negotiationService,
		StateSync:      stateSync,
		Archive:        archiver,
		Gateway:        gw,
		WebSocket:      wsServer,
	}
	app.wirePresence()
	return app
}

// wirePresence keeps the queue and session seats in step with the registry
func (a *App) wirePresence() {
	a.Registry.OnBind(func(id model.ParticipantID) {
		a.notifyPresence(id, true)
	})
	a.Registry.OnUnbind(func(id model.ParticipantID) {
		if a.Queue.Remove(id) {
			a.Logger.Info("removed disconnected participant from queue",
				slog.String("participant_id", string(id)))
		}
		a.notifyPresence(id, false)
	})
}

func (a *App) notifyPresence(id model.ParticipantID, connected bool) {
	for _, sess := range a.SessionStore.SetConnected(id, connected) {
		side, ok := sess.SideOf(id)
		if !ok {
			continue
		}
		a.Registry.Send(sess.Participant(side.Opponent()), protocol.OpponentConnection{
			SessionID: string(sess.ID),
			Connected: connected,
		})
	}
}

// Router returns the HTTP handler serving the REST API and the websocket endpoint
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:    a.Logger,
		Store:     a.SessionStore,
		Archive:   a.Storage,
		Verifier:  a.Verifier,
		Stats:     a,
		WebSocket: a.WebSocket,
	})
}

// Run drives the matchmaking sweep and the archive worker until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Matchmaker.Run(ctx)
	})
	g.Go(func() error {
		return a.Archive.Run(ctx)
	})
	return g.Wait()
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}

// Connections returns the number of bound identities
func (a *App) Connections() int {
	return a.Registry.Count()
}

// Queued returns the number of participants waiting for a match
func (a *App) Queued() int {
	return a.Queue.Len()
}

// Sessions returns the number of sessions held in memory
func (a *App) Sessions() int {
	return a.SessionStore.Count()
}
