package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentcore/telemetry"
)

// TracingProvider records an llm.chat span around every call.
type TracingProvider struct {
	provider Provider
	name     string
	tracer   *telemetry.Tracer
}

// WithTracing wraps p with spans from the global tracer.
func WithTracing(p Provider, name string) Provider {
	return &TracingProvider{provider: p, name: name}
}

// WithTracer wraps p with spans from t.
func WithTracer(p Provider, name string, t *telemetry.Tracer) Provider {
	return &TracingProvider{provider: p, name: name, tracer: t}
}

// Chat implements Provider.
func (tp *TracingProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	tracer := tp.tracer
	if tracer == nil {
		tracer = telemetry.GetTracer()
	}

	ctx, span := tracer.StartLLMSpan(ctx, "llm.chat")
	resp, err := tp.provider.Chat(ctx, req)

	opts := telemetry.LLMSpanOptions{Provider: tp.name}
	if resp != nil {
		opts.Model = resp.Model
		opts.TokensIn = resp.InputTokens
		opts.TokensOut = resp.OutputTokens
		opts.Response = resp.Content
	}
	if tracer.Debug() {
		parts := make([]string, 0, len(req.Messages))
		for _, m := range req.Messages {
			parts = append(parts, fmt.Sprintf("[%s] %s", m.Role, m.Content))
		}
		opts.Prompt = strings.Join(parts, "\n")
	}
	tracer.EndLLMSpan(span, opts, err)
	return resp, err
}
