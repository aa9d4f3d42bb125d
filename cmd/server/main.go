// Package main is the entry point for the GrandPal companion server.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/blueberrycongee/grandpal/internal/api"
	"github.com/blueberrycongee/grandpal/internal/brain"
	"github.com/blueberrycongee/grandpal/internal/cache"
	"github.com/blueberrycongee/grandpal/internal/config"
	"github.com/blueberrycongee/grandpal/internal/memory"
	"github.com/blueberrycongee/grandpal/internal/observability"
	"github.com/blueberrycongee/grandpal/internal/voice"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the configuration")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load env file", "path", *envFile, "error", err)
	}

	level := new(slog.LevelVar)
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:    level,
		Redactor: observability.NewRedactor(),
	})
	slog.SetDefault(logger)

	logger.Info("starting GrandPal companion server", "version", version)

	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Info("config file not found, using defaults and environment", "path", path)
		path = ""
	}

	cfgManager, err := config.NewManager(path, logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()
	level.Set(observability.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.Format == "text" {
		logger = observability.NewLogger(observability.LoggerConfig{
			Level:    level,
			Format:   cfg.Logging.Format,
			Redactor: observability.NewRedactor(),
		})
		slog.SetDefault(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgManager.OnChange(func(next *config.Config) {
		level.Set(observability.ParseLevel(next.Logging.Level))
		logger.Info("log level updated", "level", level.Level().String())
	})
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	tp, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	store, err := newStore(cfg.Memory)
	if err != nil {
		logger.Error("failed to open memory store", "backend", cfg.Memory.Backend, "error", err)
		os.Exit(1)
	}
	memories := memory.NewRegistry(store, memory.WithLogger(logger))

	model, err := newModel(cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to initialize model", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}

	emotionCache, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Error("failed to initialize cache", "type", cfg.Cache.Type, "error", err)
		os.Exit(1)
	}

	sink, err := newArchive(ctx, cfg.Archive)
	if err != nil {
		logger.Error("failed to initialize transcript archive", "error", err)
		os.Exit(1)
	}

	persona, err := brain.LoadPersona(cfg.Persona.Path)
	if err != nil {
		logger.Error("failed to load persona", "path", cfg.Persona.Path, "error", err)
		os.Exit(1)
	}

	sessions := brain.NewRegistry(brain.Options{
		Memories:      memories,
		Extractor:     memory.NewExtractor(model, logger),
		Model:         model,
		Persona:       persona,
		Cache:         emotionCache,
		Archive:       sink,
		CompanionName: cfg.Persona.CompanionName,
		IdleTimeout:   cfg.Session.IdleTimeout,
		Logger:        logger,
	})
	go sessions.Run(ctx, cfg.Session.SweepInterval)

	handler := api.NewHandler(api.HandlerConfig{
		Sessions: sessions,
		Memories: memories,
		Voice:    voice.NewClient(cfg.ElevenLabs),
		AgentID:  cfg.ElevenLabs.AgentID,
		Logger:   logger,
	})

	mux, err := buildMux(cfg, handler)
	if err != nil {
		logger.Error("failed to build routes", "error", err)
		os.Exit(1)
	}
	middleware, err := buildMiddlewareStack(ctx, cfg)
	if err != nil {
		logger.Error("failed to build middleware", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      middleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening",
			"addr", server.Addr,
			"llm_provider", cfg.LLM.Provider,
			"memory_backend", store.Name(),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to close sessions", "error", err)
	}
	if err := emotionCache.Close(); err != nil {
		logger.Warn("cache close error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Warn("memory store close error", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown error", "error", err)
	}

	_ = cfgManager.Close()
	logger.Info("server stopped")
}
