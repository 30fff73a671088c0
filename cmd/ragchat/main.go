package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/app"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/config"
	logpkg "github.com/hareshsuppiah/sport-science-ai-chat/internal/logger"
	chiTransport "github.com/hareshsuppiah/sport-science-ai-chat/internal/transport/chi"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragchat API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("vector_index", cfg.VectorIndex.Name),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Bool("audit", cfg.Audit.Enabled),
	)

	// Missing keys are reported per request; the server still starts so /health can say why.
	if err := cfg.MissingCredentials(); err != nil {
		logger.Warn("Credentials missing, queries will fail until configured", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}

	go deps.Sessions.Run(ctx, time.Duration(cfg.Chat.SweepIntervalSec)*time.Second)

	server := chiTransport.NewServer(deps.Chat, deps.Sessions, deps.Health, logger).
		WithPagination(cfg.Chat.DefaultPageSize, cfg.Chat.MaxPageSize)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdown := time.Duration(cfg.HTTP.ShutdownSec) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// In-flight turns have finished; drain queued chat log writes.
	stop()
	deps.Close(shutdown)

	logger.Info("Server stopped gracefully")
}
