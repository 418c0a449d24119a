package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/farmtable-go/internal/provider"
)

// LLMPinger reports whether the configured LLM backend can be reached
// without spending tokens. Ollama is probed over HTTP on /api/tags; hosted
// backends are considered ready once their credentials validate.
type LLMPinger struct {
	// cfg is the provider configuration the completer was built from.
	cfg *provider.Config
	// client issues the Ollama probe.
	client *http.Client
}

// NewLLMPinger constructs an LLMPinger for cfg.
func NewLLMPinger(cfg *provider.Config) *LLMPinger {
	return &LLMPinger{cfg: cfg, client: &http.Client{}}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string {
	if p.cfg == nil || p.cfg.Backend == "" {
		return "llm"
	}
	return string(p.cfg.Backend)
}

// Ping implements Pinger.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.cfg == nil {
		return fmt.Errorf("no provider configured")
	}
	if err := p.cfg.Validate(); err != nil {
		return err
	}
	if p.cfg.Backend != provider.BackendOllama {
		return nil
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build probe: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// NamedPinger adapts any value with a Ping method (the Postgres catalog, the
// SQLite history store) to the Pinger interface.
type NamedPinger struct {
	name   string
	target interface{ Ping(context.Context) error }
}

// NewNamedPinger labels target as name in readiness responses.
func NewNamedPinger(name string, target interface{ Ping(context.Context) error }) *NamedPinger {
	return &NamedPinger{name: name, target: target}
}

// Name implements Pinger.
func (p *NamedPinger) Name() string { return p.name }

// Ping implements Pinger.
func (p *NamedPinger) Ping(ctx context.Context) error { return p.target.Ping(ctx) }
