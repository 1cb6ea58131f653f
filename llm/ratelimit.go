package llm

import (
	"context"
	stderrors "errors"

	"github.com/vinayprograms/agentcore/errors"
	"github.com/vinayprograms/agentcore/ratelimit"
)

// RateLimitedProvider takes a limiter token before every call and reduces
// the resource when the provider answers with a rate limit.
type RateLimitedProvider struct {
	provider Provider
	limiter  ratelimit.Limiter
	resource string
}

// WithRateLimit wraps p so that calls draw from resource in l.
func WithRateLimit(p Provider, l ratelimit.Limiter, resource string) Provider {
	return &RateLimitedProvider{provider: p, limiter: l, resource: resource}
}

// Chat implements Provider.
func (rp *RateLimitedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := rp.limiter.Acquire(ctx, rp.resource); err != nil {
		switch {
		case stderrors.Is(err, ratelimit.ErrUnknownResource):
			// No budget configured for this resource.
		case stderrors.Is(err, ratelimit.ErrClosed):
			return nil, errors.WrapWithCode(err, errors.ErrCodeUnavailable, "rate limiter closed",
				errors.WithMetadata("provider", rp.resource))
		default:
			return nil, err
		}
	}

	resp, err := rp.provider.Chat(ctx, req)
	if IsRateLimited(err) {
		rp.limiter.Reduce(rp.resource, err.Error())
	}
	return resp, err
}
