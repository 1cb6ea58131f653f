package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleProvider talks to the Gemini API.
type GoogleProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGoogleProvider creates a Gemini provider.
func NewGoogleProvider(cfg ProviderConfig) (*GoogleProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating google client: %w", err)
	}
	return &GoogleProvider{client: client, model: cfg.Model, maxTokens: cfg.MaxTokens}, nil
}

// Close releases the client.
func (p *GoogleProvider) Close() error {
	return p.client.Close()
}

// Chat implements Provider. Every call builds its own model handle, since
// system instructions and limits are set on it.
func (p *GoogleProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := p.client.GenerativeModel(p.model)
	limit := int32(maxTokens(req, p.maxTokens))
	model.MaxOutputTokens = &limit

	cs := model.StartChat()
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(m.Content)}}
		case "user":
			cs.History = append(cs.History, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		case "assistant":
			cs.History = append(cs.History, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}

	// The last user turn is sent as the prompt, not as history.
	var prompt genai.Text
	if n := len(cs.History); n > 0 && cs.History[n-1].Role == "user" {
		if text, ok := cs.History[n-1].Parts[0].(genai.Text); ok {
			prompt = text
		}
		cs.History = cs.History[:n-1]
	}

	resp, err := cs.SendMessage(ctx, prompt)
	if err != nil {
		return nil, classify("google", err)
	}

	out := &ChatResponse{Model: p.model}
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		if c.FinishReason != 0 {
			out.StopReason = c.FinishReason.String()
		}
		if c.Content != nil {
			for _, part := range c.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					out.Content += string(text)
				}
			}
		}
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
