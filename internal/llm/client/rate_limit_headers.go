package llmclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitHeaders is the normalized view of provider rate-limit headers.
type RateLimitHeaders struct {
	RetryAfter time.Duration

	RemainingRequests int
	RemainingTokens   int
	ResetRequests     time.Duration
	ResetTokens       time.Duration
}

// ParseRateLimitHeaders reads Retry-After and the x-ratelimit-* family used
// by OpenAI-compatible APIs. Missing values stay at their zero value,
// except remaining counts, which default to -1.
func ParseRateLimitHeaders(h http.Header) RateLimitHeaders {
	out := RateLimitHeaders{RemainingRequests: -1, RemainingTokens: -1}
	if h == nil {
		return out
	}
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			out.RetryAfter = time.Duration(secs * float64(time.Second))
		} else if at, err := http.ParseTime(v); err == nil {
			if d := time.Until(at); d > 0 {
				out.RetryAfter = d
			}
		}
	}
	if n, err := strconv.Atoi(h.Get("X-Ratelimit-Remaining-Requests")); err == nil {
		out.RemainingRequests = n
	}
	if n, err := strconv.Atoi(h.Get("X-Ratelimit-Remaining-Tokens")); err == nil {
		out.RemainingTokens = n
	}
	out.ResetRequests = parseResetDuration(h.Get("X-Ratelimit-Reset-Requests"))
	out.ResetTokens = parseResetDuration(h.Get("X-Ratelimit-Reset-Tokens"))
	return out
}

// NextWait converts headers into a wait before the next attempt.
func NextWait(h RateLimitHeaders) time.Duration {
	if h.RetryAfter > 0 {
		return h.RetryAfter
	}
	if h.RemainingTokens == 0 && h.ResetTokens > 0 {
		return h.ResetTokens
	}
	if h.RemainingRequests == 0 && h.ResetRequests > 0 {
		return h.ResetRequests
	}
	return 0
}

// parseResetDuration accepts Go durations ("2m59.56s", "250ms") and bare
// seconds.
func parseResetDuration(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}
