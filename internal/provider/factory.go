package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// ConfigFromEnv resolves a Config from environment variables. MODEL_PROVIDER
// selects the backend; each provider uses its own native credential env vars.
//
// Environment variables:
//
//	MODEL_PROVIDER  = ollama | openai | azure | ark | gemini | none (default: ollama)
//
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o-mini), OPENAI_BASE_URL
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Ark:     ARK_API_KEY, ARK_MODEL (endpoint id), ARK_BASE_URL
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-flash)
//
//	Shared:  MODEL_MAX_TOKENS (default: 1024), MODEL_TEMPERATURE (default: 0.7)
func ConfigFromEnv() *Config {
	cfg := &Config{
		Backend:     Backend(strings.ToLower(getEnvOrDefault("MODEL_PROVIDER", string(BackendOllama)))),
		MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 1024),
		Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.7),
	}
	switch cfg.Backend {
	case BackendOllama:
		cfg.BaseURL = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		cfg.Model = getEnvOrDefault("OLLAMA_MODEL", "llama3")
	case BackendOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Model = getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini")
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	case BackendAzure:
		cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		cfg.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		cfg.AzureDeployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		cfg.AzureAPIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01")
	case BackendArk:
		cfg.APIKey = os.Getenv("ARK_API_KEY")
		cfg.Model = os.Getenv("ARK_MODEL")
		cfg.BaseURL = os.Getenv("ARK_BASE_URL")
	case BackendGemini:
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
		cfg.Model = getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash")
	}
	return cfg
}

// Validate checks that the fields the selected backend needs are present.
// Missing credentials wrap domain.ErrProviderUnavailable so the caller can
// fall back to Unavailable and keep serving degraded results.
func (c *Config) Validate() error {
	missing := func(what string) error {
		return fmt.Errorf("provider: %s backend requires %s: %w", c.Backend, what, domain.ErrProviderUnavailable)
	}
	switch c.Backend {
	case BackendOllama:
		if c.Model == "" {
			return missing("OLLAMA_MODEL")
		}
	case BackendOpenAI:
		if c.APIKey == "" {
			return missing("OPENAI_API_KEY")
		}
		if c.Model == "" {
			return missing("OPENAI_MODEL")
		}
	case BackendAzure:
		if c.APIKey == "" {
			return missing("AZURE_OPENAI_API_KEY")
		}
		if c.BaseURL == "" {
			return missing("AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureDeployment == "" {
			return missing("AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendArk:
		if c.APIKey == "" {
			return missing("ARK_API_KEY")
		}
		if c.Model == "" {
			return missing("ARK_MODEL")
		}
	case BackendGemini:
		if c.APIKey == "" {
			return missing("GOOGLE_API_KEY")
		}
		if c.Model == "" {
			return missing("GEMINI_MODEL")
		}
	case BackendNone:
		return fmt.Errorf("provider: completion disabled: %w", domain.ErrProviderUnavailable)
	default:
		return fmt.Errorf("provider: unknown backend %q (valid: ollama, openai, azure, ark, gemini, none)", c.Backend)
	}
	return nil
}

// New constructs a chat model from an explicit Config, delegating to the
// backend constructor. It validates first so callers get a clear error at
// startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		cm  model.BaseChatModel
		err error
	)
	switch cfg.Backend {
	case BackendOllama:
		cm, err = newOllama(ctx, cfg)
	case BackendOpenAI:
		cm, err = newOpenAI(ctx, cfg)
	case BackendAzure:
		cm, err = newAzure(ctx, cfg)
	case BackendArk:
		cm, err = newArk(ctx, cfg)
	case BackendGemini:
		cm, err = newGemini(ctx, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("provider: construct %s chat model: %w", cfg.Backend, err)
	}
	return cm, nil
}

// NewCompleterFromEnv resolves the env config and returns a ready Completer.
// When the backend is not configured it returns Unavailable together with
// the reason, so callers can log it and continue.
func NewCompleterFromEnv(ctx context.Context) (Completer, *Config, error) {
	cfg := ConfigFromEnv()
	cm, err := New(ctx, cfg)
	if err != nil {
		return Unavailable{Reason: err.Error()}, cfg, err
	}
	return NewChatCompleter(cm, cfg), cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
