package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"callpipe/internal/config"
	"callpipe/internal/queue"
	"callpipe/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load .env when present; container deployments set real env.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.ValidateRelay(); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "relay")
	slog.SetDefault(log)

	reader := queue.NewReader(cfg.Kafka)
	defer reader.Close()

	dlq := queue.NewDLQPublisher(cfg.Kafka)
	defer dlq.Close()

	rl := &queue.Relay{
		Reader:       reader,
		DLQ:          dlq,
		ProcessorURL: cfg.Relay.ProcessorURL,
		Client:       &http.Client{Timeout: cfg.Relay.PushTimeout},
		Log:          log,
	}

	log.Info("relay consuming", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID,
		"processor_url", cfg.Relay.ProcessorURL)

	if err := rl.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("relay stopped", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
