package llm

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/vinayprograms/agentcore/errors"
)

// classify maps a provider SDK error onto the error taxonomy. Rate limits
// and 5xx responses are UNAVAILABLE so callers can tell them from a bad
// request; context errors pass through untouched.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	meta := errors.WithMetadata("provider", provider)
	switch {
	case isRateLimitError(err):
		return errors.WrapWithCode(err, errors.ErrCodeUnavailable, provider+" rate limited", meta,
			errors.WithMetadata("rate_limited", "true"))
	case isServerError(err):
		return errors.WrapWithCode(err, errors.ErrCodeUnavailable, provider+" request failed", meta)
	case isBillingError(err):
		return errors.WrapWithCode(err, errors.ErrCodeTaskFailed, provider+" billing error", meta,
			errors.WithMetadata("billing", "true"))
	default:
		return errors.WrapWithCode(err, errors.ErrCodeTaskFailed, provider+" request failed", meta)
	}
}

func isRateLimitError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "rate limit") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "429") ||
		strings.Contains(s, "overloaded")
}

func isServerError(err error) bool {
	s := strings.ToLower(err.Error())
	for _, marker := range []string{
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable",
		"gateway timeout", "temporarily unavailable",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func isBillingError(err error) bool {
	s := strings.ToLower(err.Error())
	for _, marker := range []string{"billing", "payment", "credits", "quota exceeded", "insufficient", "402"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// IsRateLimited reports whether err is a provider rate limit rejection.
func IsRateLimited(err error) bool {
	return errors.GetMetadata(err)["rate_limited"] == "true"
}
