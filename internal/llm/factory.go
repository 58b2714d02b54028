package llm

import (
	"context"
	"fmt"

	"github.com/divitutor/backend/internal/logger"
)

// NewProvider creates a Provider from configuration, wrapped with retry
// and logging middleware (caller → retry → logging → vendor).
func NewProvider(ctx context.Context, cfg Config, log *logger.Logger) (Provider, error) {
	base, err := newVendorProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Provider == "mock" {
		return base, nil
	}

	return WithRetry(WithLogging(base, log), cfg.Retry), nil
}

// NewProviderWithModel builds a provider like NewProvider but with the
// vendor model overridden. The video pipeline uses this to route scene
// code generation to a heavier model than the default.
func NewProviderWithModel(ctx context.Context, cfg Config, model string, log *logger.Logger) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		cfg.Anthropic.Model = model
	case "openai":
		cfg.OpenAI.Model = model
	case "gemini":
		cfg.Gemini.Model = model
	}
	return NewProvider(ctx, cfg, log)
}

func newVendorProvider(ctx context.Context, cfg Config) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}
	return base, nil
}
