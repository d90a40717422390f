package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p2pml/training-dispatcher/common/config"
	"github.com/p2pml/training-dispatcher/common/dispatch"
	"github.com/p2pml/training-dispatcher/common/executor"
	"github.com/p2pml/training-dispatcher/common/messaging"
	"github.com/p2pml/training-dispatcher/common/redis"
	"github.com/p2pml/training-dispatcher/common/storage"
	"github.com/p2pml/training-dispatcher/common/work"
)

func main() {
	// INITIATE CONFIGURATION
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Error loading .env file, using environment variables")
	}

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := zerolog.ParseLevel(levelStr); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// INITIATE REDIS
	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup Redis")
	}
	defer redisClient.Close()

	// INITIATE NATS CLIENT
	natsClient, err := messaging.SetupNatsBroker(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup NATS client")
	}
	defer natsClient.Close()

	// INITIATE CONTENT STORE
	store, err := storage.NewAkaveStore(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup content store")
	}

	// INITIATE DISPATCHER
	subprocess, err := executor.NewSubprocess(cfg.Dispatch.Interpreter, cfg.Dispatch.ExecTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup payload executor")
	}

	runner := dispatch.NewRunner(store, subprocess, cfg.Dispatch)
	manager := work.NewTaskManager(redisClient, cfg.Dispatch.StateTTL)
	service := dispatch.NewService(store, runner, manager, natsClient, cfg.Dispatch)

	if running, err := manager.ListRunning(ctx); err == nil && len(running) > 0 {
		log.Warn().Strs("tasks", running).Msg("Found tasks still marked as running from a previous run")
	}

	// INITIATE SERVER
	server, err := NewAppHttpServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create the server")
	}

	// Inject dependencies
	server.SetRedis(redisClient)
	server.SetNatsClient(natsClient)
	server.SetStore(store)
	server.SetDispatch(service, manager)

	// Setup routes
	server.setupRoute()

	// Start server in a goroutine
	go func() {
		if err := server.start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			cancel()
		}
	}()

	log.Info().Str("address", cfg.Listen.Addr()).Msg("Server started successfully")

	// Wait for shutdown signal
	select {
	case <-shutdown:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Server gracefully stopped")
}
