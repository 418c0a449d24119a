// Package embedder converts text into dense vector embeddings. The OpenAI,
// Azure OpenAI and Ollama backends talk plain HTTP; Gemini goes through the
// genai SDK. Every backend classifies its failures with the domain error
// taxonomy so callers can degrade uniformly.
package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// Embedder converts text into dense vectors. Implementations must be safe to
// call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their embeddings. The returned
	// slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Named is implemented by embedders that can report their model name.
type Named interface {
	Model() string
}

// ModelOf returns e's model name, or "" when e does not report one.
func ModelOf(e Embedder) string {
	if n, ok := e.(Named); ok {
		return n.Model()
	}
	return ""
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedder: empty embedding: %w", domain.ErrProviderFailed)
	}
	return vecs[0], nil
}

// Unavailable is the embedder used when no backend is configured. Every call
// fails with domain.ErrProviderUnavailable, which sends rankers down their
// lexical fallback.
type Unavailable struct {
	// Reason explains what configuration is missing.
	Reason string
}

// Embed implements Embedder.
func (u Unavailable) Embed(context.Context, []string) ([][]float32, error) {
	reason := u.Reason
	if reason == "" {
		reason = "no embedding backend configured"
	}
	return nil, fmt.Errorf("embedder: %s: %w", reason, domain.ErrProviderUnavailable)
}

// failed wraps err as a provider failure unless it already carries a
// taxonomy sentinel or is a context error, which pass through unchanged.
func failed(prefix string, err error) error {
	if errors.Is(err, domain.ErrProviderUnavailable) || errors.Is(err, domain.ErrProviderFailed) {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", prefix, domain.ErrProviderFailed, err)
	}
	return fmt.Errorf("%s: %w: %v", prefix, domain.ErrProviderFailed, err)
}
