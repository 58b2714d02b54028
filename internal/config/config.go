// Package config assembles process configuration from the environment.
// A .env file in the working directory is folded in when present;
// explicit environment variables win.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/divitutor/backend/internal/llm"
	"github.com/divitutor/backend/internal/sandbox"
	"github.com/divitutor/backend/internal/storage"
)

// Config is the assembled process configuration.
type Config struct {
	// Mode is "dev" or "prod"; it selects logger and HTTP framework modes.
	Mode string

	// HTTPAddr is the listen address for the API server.
	HTTPAddr string

	// DatabaseDSN selects the store: a postgres:// URL or a sqlite file
	// path.
	DatabaseDSN string

	// CORSOrigins is the allowed browser origin list.
	CORSOrigins []string

	// WebhookSecret verifies identity-provider webhook deliveries. Empty
	// disables verification (local development only).
	WebhookSecret string

	// VideoCodeModel overrides the model used for animation code
	// generation; the chat/hint model stays on the provider default.
	VideoCodeModel string

	LLM     llm.Config
	Sandbox sandbox.Config
	Storage storage.Config
}

// Load reads configuration, folding in a .env file when one exists.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		Mode:           envOr("DIVITUTOR_MODE", "dev"),
		HTTPAddr:       envOr("DIVITUTOR_HTTP_ADDR", ":8080"),
		DatabaseDSN:    envOr("DIVITUTOR_DB_DSN", "divitutor.db"),
		WebhookSecret:  strings.TrimSpace(os.Getenv("DIVITUTOR_CLERK_WEBHOOK_SECRET")),
		VideoCodeModel: envOr("DIVITUTOR_VIDEO_CODE_MODEL", "sonnet"),
		LLM:            llm.ConfigFromEnv(),
		Sandbox:        sandbox.ConfigFromEnv(),
		Storage:        storage.ConfigFromEnv(),
	}

	if origins := strings.TrimSpace(os.Getenv("DIVITUTOR_CORS_ORIGINS")); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Mode != "dev" && c.Mode != "prod" {
		return fmt.Errorf("DIVITUTOR_MODE must be dev or prod, got %q", c.Mode)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DIVITUTOR_DB_DSN must not be empty")
	}
	return c.LLM.Validate()
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
