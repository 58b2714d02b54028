package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DIVITUTOR_LLM_PROVIDER", "mock")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "dev" {
		t.Errorf("mode = %q, want dev", cfg.Mode)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("addr = %q", cfg.HTTPAddr)
	}
	if cfg.DatabaseDSN != "divitutor.db" {
		t.Errorf("dsn = %q", cfg.DatabaseDSN)
	}
	if cfg.VideoCodeModel != "sonnet" {
		t.Errorf("code model = %q", cfg.VideoCodeModel)
	}
}

func TestLoadCORSOrigins(t *testing.T) {
	t.Setenv("DIVITUTOR_LLM_PROVIDER", "mock")
	t.Setenv("DIVITUTOR_CORS_ORIGINS", "https://app.example.com, http://localhost:3000 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("origins = %v", cfg.CORSOrigins)
	}
	if cfg.CORSOrigins[1] != "http://localhost:3000" {
		t.Errorf("origins = %v", cfg.CORSOrigins)
	}
}

func TestLoadRejectsBadMode(t *testing.T) {
	t.Setenv("DIVITUTOR_LLM_PROVIDER", "mock")
	t.Setenv("DIVITUTOR_MODE", "staging")

	if _, err := Load(); err == nil {
		t.Errorf("invalid mode must be rejected")
	}
}

func TestLoadRequiresProviderKey(t *testing.T) {
	t.Setenv("DIVITUTOR_LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Errorf("anthropic without a key must be rejected")
	}
}
