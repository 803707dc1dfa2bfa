package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/chesschain-go/internal/api"
	"github.com/mcoot/chesschain-go/internal/config"
	"github.com/mcoot/chesschain-go/internal/factory"
	"github.com/mcoot/chesschain-go/internal/services/archive"
	"github.com/mcoot/chesschain-go/internal/services/signature"
	redisstorage "github.com/mcoot/chesschain-go/internal/storage/redis"
	"github.com/mcoot/chesschain-go/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Build factory config from environment
	factoryCfg := factory.Config{
		Logger:          logger,
		StorageType:     cfg.StorageType,
		SQLitePath:      cfg.SQLitePath,
		SignaturePolicy: signature.Policy(cfg.SignaturePolicy),
		VerifierURL:     cfg.SignatureVerifierURL,
		SweepInterval:   cfg.SweepInterval,
		Archive: archive.Config{
			Retention: cfg.CompletedRetention,
			Timeout:   cfg.ArchiveTimeout,
		},
		WebSocket: ws.Config{AllowedOrigins: cfg.AllowedOrigins},
	}

	// Configure Redis if storage type is redis
	if cfg.StorageType == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	}

	// Create application factory
	app, err := factory.New(factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Addr = cfg.HTTPAddr
	serverConfig.ShutdownTimeout = cfg.ShutdownTimeout
	server := api.NewServer(app.Router(), serverConfig, logger)
	server.RegisterOnShutdown(app.WebSocket.Shutdown)

	if err := server.Listen(); err != nil {
		logger.Error("failed to bind", slog.String("error", err.Error()))
		_ = app.Close()
		os.Exit(1)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		return server.Shutdown(context.Background())
	})

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.StorageType),
		slog.String("signature_policy", cfg.SignaturePolicy))

	runErr := g.Wait()
	if err := app.Close(); err != nil {
		logger.Warn("failed to close storage", slog.String("error", err.Error()))
	}
	if runErr != nil {
		logger.Error("server error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
