// Package transport connects a session to a hosted language model.
package transport

import (
	"os"

	"github.com/hpungsan/bitcoach/internal/config"
	coacherrors "github.com/hpungsan/bitcoach/internal/errors"
	"github.com/hpungsan/bitcoach/internal/session"
)

// API key environment variables per provider.
const (
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
)

// New returns the model backend selected by cfg.Provider.
func New(cfg *config.Config) (session.Model, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic, "":
		key := os.Getenv(EnvAnthropicKey)
		if key == "" {
			return nil, coacherrors.NewConfigInvalid("provider", EnvAnthropicKey+" is not set")
		}
		return NewAnthropic(key, cfg.Model, cfg.MaxTokens, cfg.BaseURL), nil
	case config.ProviderOpenAI:
		key := os.Getenv(EnvOpenAIKey)
		if key == "" {
			return nil, coacherrors.NewConfigInvalid("provider", EnvOpenAIKey+" is not set")
		}
		return NewOpenAI(key, cfg.Model, cfg.MaxTokens, cfg.BaseURL)
	default:
		return nil, coacherrors.NewConfigInvalid("provider", "unknown provider "+cfg.Provider)
	}
}
