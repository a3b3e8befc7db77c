package llm

import (
	"context"
	"fmt"
	"log/slog"

	"tdr-agent/internal/config"
	"tdr-agent/internal/logger"
)

// Factory builds a client for a configuration
type Factory func(ctx context.Context, cfg *Config) (ChatClient, error)

// NewClient creates a logged client for the configured provider
func NewClient(ctx context.Context, cfg *Config, logger *logger.Logger) (ChatClient, error) {
	var (
		client ChatClient
		err    error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderDeepSeek, config.ProviderOpenRouter, "":
		client = NewOpenAIClient(cfg)
	case config.ProviderGemini:
		client, err = NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("created model client", "provider", cfg.Provider, "model", cfg.Model)
	return WithLogging(client, logger), nil
}

// DefaultFactory is NewClient with the default logger
func DefaultFactory(ctx context.Context, cfg *Config) (ChatClient, error) {
	return NewClient(ctx, cfg, logger.New(nil))
}
