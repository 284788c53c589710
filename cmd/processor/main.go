package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callpipe/internal/classify"
	"callpipe/internal/config"
	"callpipe/internal/httpapi"
	"callpipe/internal/media"
	"callpipe/internal/processor"
	"callpipe/internal/store"
	"callpipe/internal/transcribe"
	"callpipe/internal/zoomapi"
	"callpipe/pkg/logger"
	"callpipe/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
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
	if err := cfg.ValidateProcessor(); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "processor")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	zoom, err := zoomapi.NewClient(cfg.Zoom)
	if err != nil {
		log.Error("zoom client init failed", "err", err)
		os.Exit(1)
	}

	mediaStore, err := media.NewStore(cfg.Minio)
	if err != nil {
		log.Error("object storage init failed", "err", err)
		os.Exit(1)
	}
	if err := mediaStore.EnsureBucket(rootCtx); err != nil {
		log.Error("bucket init failed", "err", err)
		os.Exit(1)
	}

	transcriber, err := transcribe.NewProvider("whisper", cfg.OpenAI.APIKey)
	if err != nil {
		log.Error("transcriber init failed", "err", err)
		os.Exit(1)
	}

	repo := store.NewRepository(db)

	pipeline := &processor.Pipeline{
		Tokens:      zoom,
		Fetcher:     media.NewFetcher(mediaStore),
		Transcriber: transcriber,
		Classifier:  classify.New(cfg.OpenAI.APIKey, log),
		Repo:        repo,
		Dedup:       processor.NewRedisDeduper(rdb),
		Log:         log,
	}

	tasks := processor.NewTasks(pipeline, 4, 128, log)
	handler := processor.Handler{Tasks: tasks}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	r.GET("/health", httpapi.Health("processor"))
	r.POST("/webhook", handler.HandlePush)
	r.GET("/calls/:call_id", httpapi.Calls{Repo: repo, Signer: mediaStore}.GetCall)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("processor listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	// Drain detached pipeline work after the listener stops accepting.
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		log.Error("task drain incomplete", "err", err)
	}
}
