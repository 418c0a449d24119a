package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// ChatCompleter adapts an eino chat model to Completer.
type ChatCompleter struct {
	cm              model.BaseChatModel
	modelName       string
	omitTemperature bool
}

// NewChatCompleter wraps cm. cfg supplies the recorded model name and the
// Azure reasoning-model exception; it may be nil.
func NewChatCompleter(cm model.BaseChatModel, cfg *Config) *ChatCompleter {
	c := &ChatCompleter{cm: cm}
	if cfg != nil {
		c.modelName = cfg.ModelName()
		c.omitTemperature = cfg.Backend == BackendAzure && isAzureReasoningModel(cfg.AzureDeployment)
	}
	return c
}

// Model returns the model identifier recorded with each narrative.
func (c *ChatCompleter) Model() string { return c.modelName }

// Complete implements Completer. Transport errors and empty output wrap
// domain.ErrProviderFailed.
func (c *ChatCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	msgs := make([]*schema.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, schema.SystemMessage(req.System))
	}
	msgs = append(msgs, schema.UserMessage(req.User))

	var opts []model.Option
	if !c.omitTemperature {
		if req.MaxTokens > 0 {
			opts = append(opts, model.WithMaxTokens(req.MaxTokens))
		}
		if req.Temperature > 0 {
			opts = append(opts, model.WithTemperature(req.Temperature))
		}
	}

	out, err := c.cm.Generate(ctx, msgs, opts...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("provider: generate: %w: %w", domain.ErrProviderFailed, err)
		}
		return "", fmt.Errorf("provider: generate: %w: %v", domain.ErrProviderFailed, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("provider: empty completion: %w", domain.ErrProviderFailed)
	}
	return strings.TrimSpace(out.Content), nil
}

// Unavailable is the Completer used when no backend is configured.
type Unavailable struct {
	// Reason explains what configuration is missing.
	Reason string
}

// Complete implements Completer.
func (u Unavailable) Complete(context.Context, CompletionRequest) (string, error) {
	reason := u.Reason
	if reason == "" {
		reason = "no completion backend configured"
	}
	return "", fmt.Errorf("provider: %s: %w", reason, domain.ErrProviderUnavailable)
}

// IsAvailable reports whether c can be expected to reach a backend.
func IsAvailable(c Completer) bool {
	if c == nil {
		return false
	}
	switch c.(type) {
	case Unavailable, *Unavailable:
		return false
	}
	return true
}

// ModelOf returns c's model name when it reports one.
func ModelOf(c Completer) string {
	if n, ok := c.(interface{ Model() string }); ok {
		return n.Model()
	}
	return ""
}

// DecodeJSON decodes a model reply into v. Markdown code fences and any prose
// around the outermost JSON object are tolerated. Anything that still fails
// to decode is a provider failure.
func DecodeJSON(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); start >= 0 && end > start {
		s = s[start : end+1]
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("provider: decode structured reply: %w: %v", domain.ErrProviderFailed, err)
	}
	return nil
}
