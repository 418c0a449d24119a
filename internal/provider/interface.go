// Package provider constructs the text-completion side of the AI backend.
// Chat models come from eino-ext (Ollama, OpenAI, Azure OpenAI, Ark, Gemini)
// and are wrapped in a Completer so business logic sees a single
// system+user → text call with the domain error taxonomy.
package provider

import (
	"context"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendNone disables completion; every call reports unavailable.
	BackendNone Backend = "none"
)

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name (e.g. "gpt-4o-mini", "llama3").
	// For Azure, AzureDeployment is used instead.
	Model string

	// BaseURL overrides the default API endpoint. Required for Azure.
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	APIKey string

	// AzureDeployment is the Azure OpenAI deployment name (Azure only).
	AzureDeployment string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens is the default generation cap when a request sets none.
	MaxTokens int

	// Temperature is the default sampling temperature when a request sets none.
	Temperature float32
}

// ModelName returns the identifier recorded with each narrative.
func (c *Config) ModelName() string {
	if c.Backend == BackendAzure && c.AzureDeployment != "" {
		return c.AzureDeployment
	}
	return c.Model
}

// CompletionRequest is one system+user completion call.
type CompletionRequest struct {
	// System frames the assistant's role.
	System string
	// User is the prompt body.
	User string
	// MaxTokens caps the generated length. Zero uses the backend default.
	MaxTokens int
	// Temperature controls randomness. Zero uses the backend default.
	Temperature float32
}

// Completer turns a structured prompt into free text. Failures wrap
// domain.ErrProviderUnavailable or domain.ErrProviderFailed. Implementations
// must be safe to call from multiple goroutines.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
