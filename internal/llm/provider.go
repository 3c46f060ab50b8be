package llm

import (
	"context"
	"fmt"

	"github.com/1323216010/exam/internal/config"
	"github.com/1323216010/exam/internal/domain"
)

// New returns the streamer configured by cfg.
func New(ctx context.Context, cfg config.AIConfig) (domain.Streamer, error) {
	if err := cfg.RequireKey(); err != nil {
		return nil, domain.ConfigError("missing API key", err)
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model,
			WithThinking(cfg.EnableThinking),
			WithTimeout(cfg.Timeout),
		), nil
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.EnableThinking, cfg.Timeout)
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown provider %q", cfg.Provider), nil)
	}
}
