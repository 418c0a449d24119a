package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/farmtable-go/internal/domain"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		// ── Ollama ────────────────────────────────────────────────────────────
		{name: "ollama/valid", cfg: Config{Backend: BackendOllama, BaseURL: "http://localhost:11434", Model: "llama3"}},
		{name: "ollama/missing model", cfg: Config{Backend: BackendOllama}, wantErr: "OLLAMA_MODEL"},

		// ── OpenAI ────────────────────────────────────────────────────────────
		{name: "openai/valid", cfg: Config{Backend: BackendOpenAI, APIKey: "sk-test", Model: "gpt-4o-mini"}},
		{name: "openai/missing api key", cfg: Config{Backend: BackendOpenAI, Model: "gpt-4o-mini"}, wantErr: "OPENAI_API_KEY"},
		{name: "openai/missing model", cfg: Config{Backend: BackendOpenAI, APIKey: "sk-test"}, wantErr: "OPENAI_MODEL"},

		// ── Azure ─────────────────────────────────────────────────────────────
		{
			name: "azure/valid",
			cfg:  Config{Backend: BackendAzure, APIKey: "key", BaseURL: "https://my.openai.azure.com", AzureDeployment: "gpt-4o", AzureAPIVersion: "2024-02-01"},
		},
		{
			name:    "azure/missing api key",
			cfg:     Config{Backend: BackendAzure, BaseURL: "https://my.openai.azure.com", AzureDeployment: "gpt-4o"},
			wantErr: "AZURE_OPENAI_API_KEY",
		},
		{
			name:    "azure/missing endpoint",
			cfg:     Config{Backend: BackendAzure, APIKey: "key", AzureDeployment: "gpt-4o"},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name:    "azure/missing deployment",
			cfg:     Config{Backend: BackendAzure, APIKey: "key", BaseURL: "https://my.openai.azure.com"},
			wantErr: "AZURE_OPENAI_DEPLOYMENT",
		},

		// ── Ark ───────────────────────────────────────────────────────────────
		{name: "ark/valid", cfg: Config{Backend: BackendArk, APIKey: "ak", Model: "ep-123"}},
		{name: "ark/missing key", cfg: Config{Backend: BackendArk, Model: "ep-123"}, wantErr: "ARK_API_KEY"},
		{name: "ark/missing model", cfg: Config{Backend: BackendArk, APIKey: "ak"}, wantErr: "ARK_MODEL"},

		// ── Gemini ────────────────────────────────────────────────────────────
		{name: "gemini/valid", cfg: Config{Backend: BackendGemini, APIKey: "AIza-test", Model: "gemini-1.5-flash"}},
		{name: "gemini/missing api key", cfg: Config{Backend: BackendGemini, Model: "gemini-1.5-flash"}, wantErr: "GOOGLE_API_KEY"},
		{name: "gemini/missing model", cfg: Config{Backend: BackendGemini, APIKey: "AIza-test"}, wantErr: "GEMINI_MODEL"},

		// ── Disabled / unknown ────────────────────────────────────────────────
		{name: "none", cfg: Config{Backend: BackendNone}, wantErr: "disabled"},
		{name: "unknown backend", cfg: Config{Backend: "unknown"}, wantErr: "unknown backend"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestConfigValidate_MissingCredentialIsUnavailable(t *testing.T) {
	t.Parallel()

	cfg := Config{Backend: BackendOpenAI, Model: "gpt-4o-mini"}
	if err := cfg.Validate(); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("Validate() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "AZURE")
	t.Setenv("AZURE_OPENAI_API_KEY", "k")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://x.openai.azure.com")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4.1")
	t.Setenv("AZURE_OPENAI_API_VERSION", "")
	t.Setenv("MODEL_MAX_TOKENS", "321")
	t.Setenv("MODEL_TEMPERATURE", "")

	cfg := ConfigFromEnv()
	if cfg.Backend != BackendAzure {
		t.Fatalf("Backend = %q, want azure", cfg.Backend)
	}
	if cfg.AzureAPIVersion != "2024-02-01" || cfg.MaxTokens != 321 || cfg.Temperature != 0.7 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ModelName() != "gpt-4.1" {
		t.Errorf("ModelName() = %q", cfg.ModelName())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestIsAzureReasoningModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		deployment string
		want       bool
	}{
		{"o1", true},
		{"o1-preview", true},
		{"o3-mini", true},
		{"o4-mini", true},
		{"O1-PREVIEW", true},
		{"codex-mini", true},
		{"gpt-5.2-codex", false},
		{"gpt-4o", false},
		{"gpt-4.1", false},
		{"gpt-35-turbo", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.deployment, func(t *testing.T) {
			t.Parallel()
			if got := isAzureReasoningModel(tc.deployment); got != tc.want {
				t.Errorf("isAzureReasoningModel(%q) = %v, want %v", tc.deployment, got, tc.want)
			}
		})
	}
}

// fakeChatModel records the last call and replies with a canned message.
type fakeChatModel struct {
	reply   string
	err     error
	gotMsgs []*schema.Message
	gotOpts []model.Option
}

func (f *fakeChatModel) Generate(_ context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.gotMsgs = msgs
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestChatCompleter_Complete(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: "  Try the carrots.  "}
	c := NewChatCompleter(fake, &Config{Backend: BackendOllama, Model: "llama3"})

	got, err := c.Complete(context.Background(), CompletionRequest{System: "sys", User: "q", MaxTokens: 500, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if got != "Try the carrots." {
		t.Errorf("Complete() = %q", got)
	}
	if len(fake.gotMsgs) != 2 || fake.gotMsgs[0].Role != schema.System || fake.gotMsgs[1].Content != "q" {
		t.Errorf("messages = %+v", fake.gotMsgs)
	}
	opts := model.GetCommonOptions(nil, fake.gotOpts...)
	if opts.MaxTokens == nil || *opts.MaxTokens != 500 {
		t.Errorf("MaxTokens option not passed")
	}
	if opts.Temperature == nil || *opts.Temperature != 0.7 {
		t.Errorf("Temperature option not passed")
	}
	if c.Model() != "llama3" {
		t.Errorf("Model() = %q", c.Model())
	}
}

func TestChatCompleter_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		fake *fakeChatModel
	}{
		{"transport", &fakeChatModel{err: errors.New("connection refused")}},
		{"empty", &fakeChatModel{reply: "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewChatCompleter(tc.fake, nil).Complete(context.Background(), CompletionRequest{User: "q"})
			if !errors.Is(err, domain.ErrProviderFailed) {
				t.Errorf("error = %v, want ErrProviderFailed", err)
			}
		})
	}
}

func TestUnavailable(t *testing.T) {
	t.Parallel()

	_, err := Unavailable{}.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
	if IsAvailable(Unavailable{}) {
		t.Error("IsAvailable(Unavailable) = true")
	}
	if !IsAvailable(NewChatCompleter(&fakeChatModel{}, nil)) {
		t.Error("IsAvailable(ChatCompleter) = false")
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type reply struct {
		Trend string `json:"trend"`
	}

	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", `{"trend":"up"}`, "up", false},
		{"fenced", "```json\n{\"trend\":\"down\"}\n```", "down", false},
		{"prose around", "Here you go: {\"trend\":\"stable\"} hope it helps", "stable", false},
		{"garbage", "no json here", "", true},
		{"truncated", `{"trend":`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var r reply
			err := DecodeJSON(tc.raw, &r)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrProviderFailed) {
					t.Errorf("DecodeJSON() error = %v, want ErrProviderFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON() error: %v", err)
			}
			if r.Trend != tc.want {
				t.Errorf("Trend = %q, want %q", r.Trend, tc.want)
			}
		})
	}
}
