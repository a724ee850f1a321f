package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	llmclient "summeriq/internal/llm/client"
)

// Kind classifies a provider failure.
type Kind int

const (
	KindOther Kind = iota
	KindRateLimited
	KindAuthFailure
	KindUnavailable
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindAuthFailure:
		return "auth_failure"
	case KindUnavailable:
		return "unavailable"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "other"
	}
}

// ErrTooLarge is the cause of a KindOther error for oversize requests.
var ErrTooLarge = errors.New("too large")

// ProviderError is the only error type Complete returns besides context
// errors.
type ProviderError struct {
	Kind       Kind
	StatusCode int
	Attempts   int
	RetryAfter time.Duration // wait hint for rate limits
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString("provider ")
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsKind reports whether err is a ProviderError of kind k.
func IsKind(err error, k Kind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == k
}

var tooLargeMarkers = []string{
	"too large",
	"context_length_exceeded",
	"maximum context length",
	"request entity too large",
	"prompt is too long",
}

func bodyTooLarge(body string) bool {
	lower := strings.ToLower(body)
	for _, m := range tooLargeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Classify maps a provider error onto a ProviderError. Errors that carry no
// status (transport failures) are Unavailable.
func Classify(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, llmclient.ErrMalformed) {
		return &ProviderError{Kind: KindMalformedResponse, Err: err}
	}
	var se *llmclient.StatusError
	if !errors.As(err, &se) {
		return &ProviderError{Kind: KindUnavailable, Err: err}
	}
	out := &ProviderError{StatusCode: se.StatusCode, Err: err}
	switch {
	case se.StatusCode == http.StatusRequestEntityTooLarge || bodyTooLarge(se.Body):
		out.Kind = KindOther
		out.Err = fmt.Errorf("%w: %v", ErrTooLarge, err)
	case se.StatusCode == http.StatusTooManyRequests:
		out.Kind = KindRateLimited
		if d, ok := ParseWaitHint(se.Body); ok {
			out.RetryAfter = d
		} else {
			out.RetryAfter = se.RetryAfter
		}
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		out.Kind = KindAuthFailure
	case se.StatusCode >= 500:
		out.Kind = KindUnavailable
	default:
		out.Kind = KindOther
	}
	return out
}
