package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blueberrycongee/grandpal/internal/archive"
	"github.com/blueberrycongee/grandpal/internal/config"
	"github.com/blueberrycongee/grandpal/internal/llm"
	"github.com/blueberrycongee/grandpal/internal/llm/anthropic"
	"github.com/blueberrycongee/grandpal/internal/memory"
	"github.com/blueberrycongee/grandpal/internal/provider"
	"github.com/blueberrycongee/grandpal/internal/provider/gemini"
)

// newStore opens the configured memory backend.
func newStore(cfg config.MemoryConfig) (memory.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return memory.NewSQLiteStore(cfg.SQLitePath)
	case config.BackendFile, "":
		return memory.NewFileStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unsupported memory backend: %s", cfg.Backend)
	}
}

// newModel builds the conversational model. Gemini is driven through the
// provider registry over plain HTTP; Anthropic uses its SDK.
func newModel(cfg config.LLMConfig, logger *slog.Logger) (llm.Model, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(anthropic.Options{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			Logger:      logger,
		})
	case config.ProviderGemini, "":
		registry := provider.NewRegistry()
		registry.Register(gemini.ProviderName, gemini.New)

		p, err := registry.Create(provider.ProviderConfig{
			Type:    gemini.ProviderName,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return llm.NewHTTPModel(p, llm.HTTPOptions{
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			Logger:      logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// newArchive returns the S3 transcript sink when enabled, or a no-op sink.
func newArchive(ctx context.Context, cfg config.ArchiveConfig) (archive.Sink, error) {
	if !cfg.S3.Enabled {
		return archive.Nop{}, nil
	}
	return archive.NewS3Sink(ctx, cfg.S3)
}
