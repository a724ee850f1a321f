package llmclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Request is one prompt plus its system instruction.
type Request struct {
	Prompt string
	System string
}

// Provider sends a single request to a text-generation backend. It does not
// retry, throttle or sanitize; those concerns live in package llm.
type Provider interface {
	Name() string
	Send(ctx context.Context, req Request) (string, error)
}

// ErrMalformed marks a 2xx response whose payload failed validation.
var ErrMalformed = errors.New("llmclient: malformed response")

// StatusError is a non-2xx response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration // parsed from response headers, 0 when absent
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

const maxErrorBody = 2048

func newStatusError(provider string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: NextWait(ParseRateLimitHeaders(resp.Header)),
	}
}

func malformed(provider, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", provider, ErrMalformed, fmt.Sprintf(format, args...))
}
