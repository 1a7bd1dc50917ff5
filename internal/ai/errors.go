package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// ModelNotFoundError indicates the requested model is not available.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

// BadRequestError indicates a 4xx request problem (e.g., 400 validation).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError indicates billing/quota problems.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

// ServerError indicates 5xx errors from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

// UnreachableError indicates the target runtime is not reachable (e.g., local Ollama down).
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Hint returns a short operator-facing suggestion for a provider failure,
// or "" when there is nothing more useful to say than the error itself.
func Hint(err error) string {
	var (
		auth   *AuthError
		rl     *RateLimitError
		nf     *ModelNotFoundError
		quota  *QuotaExceededError
		unr    *UnreachableError
		server *ServerError
	)
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return "set api_key with `keiba config set api_key <key>` or export KEIBA_API_KEY"
	case errors.As(err, &auth):
		return "check that the API key is valid"
	case errors.As(err, &rl):
		return "too many requests; try again shortly"
	case errors.As(err, &nf):
		return "check default_model; the provider does not serve it"
	case errors.As(err, &quota):
		return "the provider account is out of credits"
	case errors.As(err, &unr):
		return "the model endpoint could not be reached"
	case errors.As(err, &server):
		return "the provider is having problems; try again later"
	case errors.Is(err, context.DeadlineExceeded):
		return "the model took too long to answer"
	}
	return ""
}
