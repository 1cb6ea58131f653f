// Package llm provides chat providers and the llm.chat task handler.
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/vinayprograms/agentcore/config"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatRequest is a single chat completion request.
type ChatRequest struct {
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// ChatResponse is a provider's reply.
type ChatResponse struct {
	Content      string `json:"content"`
	StopReason   string `json:"stop_reason"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Model        string `json:"model"`
}

// Provider sends chat requests to a model. Each call is a single attempt;
// failures are classified but never retried here.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Provider  string `json:"provider"` // anthropic, openai, google
	Model     string `json:"model"`
	APIKey    string `json:"-"`
	MaxTokens int    `json:"max_tokens"`
	BaseURL   string `json:"base_url,omitempty"`
}

// Validate checks the configuration.
func (c *ProviderConfig) Validate() error {
	switch {
	case c.Provider == "":
		return fmt.Errorf("provider is required")
	case c.Model == "":
		return fmt.Errorf("model is required")
	case c.APIKey == "":
		return fmt.Errorf("api key is required for %s", c.Provider)
	case c.MaxTokens <= 0:
		return fmt.Errorf("max_tokens must be positive")
	}
	return nil
}

// ConfigFrom builds a ProviderConfig from the [llm] section, resolving the
// API key through creds.
func ConfigFrom(c config.LLMConfig, creds *config.Credentials) ProviderConfig {
	return ProviderConfig{
		Provider:  c.Provider,
		Model:     c.Model,
		APIKey:    creds.APIKey(c.Provider, c.APIKeyEnv),
		MaxTokens: c.MaxTokens,
		BaseURL:   c.BaseURL,
	}
}

// NewProvider creates the provider named by cfg, wrapped with tracing.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "anthropic":
		p, err = NewAnthropicProvider(cfg)
	case "openai":
		p, err = NewOpenAIProvider(cfg)
	case "google":
		p, err = NewGoogleProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithTracing(p, cfg.Provider), nil
}

// MockProvider is a scripted provider for tests and dry runs.
type MockProvider struct {
	mu       sync.Mutex
	response ChatResponse
	err      error
	requests []ChatRequest

	// ChatFunc, when set, replaces the scripted reply.
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// NewMockProvider creates a mock that answers content.
func NewMockProvider(content string) *MockProvider {
	return &MockProvider{response: ChatResponse{
		Content:    content,
		StopReason: "end_turn",
		Model:      "mock",
	}}
}

// SetTokenCounts sets the reported usage.
func (p *MockProvider) SetTokenCounts(in, out int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.response.InputTokens = in
	p.response.OutputTokens = out
}

// SetError makes every call fail with err.
func (p *MockProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Requests returns every request received so far.
func (p *MockProvider) Requests() []ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ChatRequest(nil), p.requests...)
}

// Chat implements Provider.
func (p *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	resp, err, fn := p.response, p.err, p.ChatFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return &resp, nil
}
