package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nexusai/nexus/internal/agent"
	"github.com/nexusai/nexus/internal/api"
	"github.com/nexusai/nexus/internal/classify"
	"github.com/nexusai/nexus/internal/config"
	"github.com/nexusai/nexus/internal/events"
	"github.com/nexusai/nexus/internal/logging"
	"github.com/nexusai/nexus/internal/memory"
	"github.com/nexusai/nexus/internal/middleware"
	"github.com/nexusai/nexus/internal/notify"
	"github.com/nexusai/nexus/internal/pipeline"
	"github.com/nexusai/nexus/internal/scheduler"
	"github.com/nexusai/nexus/internal/store"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	hub := events.NewHub(logger)
	if cfg.Redis.Addr != "" {
		mirror, err := events.NewRedisMirror(cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			logger.Warn("redis mirror disabled", zap.Error(err))
		} else {
			hub.SetMirror(mirror)
			defer func() { _ = mirror.Close() }()
			logger.Info("mirroring events to redis", zap.String("addr", cfg.Redis.Addr), zap.String("channel", cfg.Redis.Channel))
		}
	}

	mem, err := memory.New(filepath.Join(cfg.DataDir, "memory"))
	if err != nil {
		logger.Fatal("failed to initialize memory", zap.Error(err))
	}

	completer, err := agent.NewGeminiCompleter(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		logger.Fatal("failed to initialize agent completer", zap.Error(err))
	}

	var notifier *notify.Notifier
	if cfg.Email.APIKey != "" && cfg.Email.To != "" {
		notifier = notify.New(cfg.Email.APIKey, cfg.Email.FromName, cfg.Email.FromAddress, cfg.Email.To, logger)
		logger.Info("failure alerts enabled", zap.String("to", cfg.Email.To))
	}

	pipe := pipeline.New(pipeline.Options{
		Store:           st,
		Hub:             hub,
		Team:            agent.NewTeam(completer),
		Memory:          mem,
		Classifier:      classify.NewKeywordClassifier(),
		Notifier:        notifier,
		Logger:          logger,
		DispatchTimeout: cfg.DispatchTimeout,
	})

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(pipe, logger)
		if err != nil {
			logger.Fatal("failed to initialize scheduler", zap.Error(err))
		}
		pipe.AttachScheduler(sched)
	}

	handler := middleware.CORS(middleware.Metrics(api.New(pipe, hub, st, mem, logger)))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	pipe.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}

	// Let in-flight dispatches reach their terminal records before the store
	// closes.
	done := make(chan struct{})
	go func() {
		pipe.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("timed out waiting for in-flight tasks")
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		return store.NewSQLiteStore(cfg.Store.DSN)
	case "postgres":
		return store.NewPostgresStore(cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}
