// Package llm is the throttled, retrying client in front of a
// text-generation provider.
//
// Every Client sharing a Gate serializes its calls: the permit is taken
// before the first attempt and released after the post-success cooldown,
// so rate-limit waits also hold it. Only rate limits are retried.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	llmclient "summeriq/internal/llm/client"
	"summeriq/internal/logging"
	"summeriq/internal/metrics"
	"summeriq/internal/sanitize"
)

const (
	DefaultMaxAttempts = 5
	DefaultWait        = time.Second
	DefaultMaxWait     = time.Minute
	DefaultCooldown    = time.Second
)

type Options struct {
	Gate      *Gate
	Sanitizer *sanitize.Sanitizer
	System    string // system instruction used by Complete

	MaxAttempts int
	DefaultWait time.Duration // used when a rate limit carries no hint
	MaxWait     time.Duration
	Cooldown    time.Duration // negative disables

	MaxPromptTokens int // 0 disables the preflight size check
	Counter         llmclient.TokenCounter

	Logger *zap.Logger
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Stats struct {
	Attempts int64
	Retries  int64
}

type Client struct {
	p    llmclient.Provider
	opts Options
	log  *zap.Logger

	attempts atomic.Int64
	retries  atomic.Int64
}

func New(p llmclient.Provider, opts Options) *Client {
	if opts.Gate == nil {
		opts.Gate = NewGate()
	}
	if opts.Sanitizer == nil {
		opts.Sanitizer = sanitize.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.DefaultWait <= 0 {
		opts.DefaultWait = DefaultWait
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Counter == nil {
		opts.Counter = llmclient.HeuristicCounter()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Client{p: p, opts: opts, log: logging.OrNop(opts.Logger)}
}

func (c *Client) Name() string { return c.p.Name() }

func (c *Client) Stats() Stats {
	return Stats{Attempts: c.attempts.Load(), Retries: c.retries.Load()}
}

// Complete sends prompt with the configured system instruction and returns
// the sanitized completion.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWith(ctx, llmclient.Request{Prompt: prompt, System: c.opts.System})
}

func (c *Client) CompleteWith(ctx context.Context, req llmclient.Request) (string, error) {
	if c.opts.MaxPromptTokens > 0 {
		if n := c.opts.Counter.Count(req.System + "\n" + req.Prompt); n > c.opts.MaxPromptTokens {
			return "", &ProviderError{
				Kind: KindOther,
				Err:  fmt.Errorf("%w: prompt is %d tokens (max %d)", ErrTooLarge, n, c.opts.MaxPromptTokens),
			}
		}
	}

	if err := c.opts.Gate.Acquire(ctx); err != nil {
		return "", err
	}
	defer c.opts.Gate.Release()

	for attempt := 1; ; attempt++ {
		c.attempts.Add(1)
		text, err := c.p.Send(ctx, req)
		if err == nil {
			if c.opts.Cooldown > 0 {
				_ = c.opts.Sleep(ctx, c.opts.Cooldown)
			}
			clean := c.opts.Sanitizer.Clean(text)
			if clean == "" {
				return "", &ProviderError{Kind: KindMalformedResponse, Attempts: attempt, Err: errors.New("completion is empty after sanitization")}
			}
			return clean, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		perr := Classify(err)
		perr.Attempts = attempt
		if perr.Kind != KindRateLimited {
			return "", perr
		}
		if attempt >= c.opts.MaxAttempts {
			c.log.Warn("rate limit retries exhausted", zap.Int("attempts", attempt))
			return "", perr
		}

		wait := perr.RetryAfter
		if wait <= 0 {
			wait = c.opts.DefaultWait
		}
		if wait > c.opts.MaxWait {
			wait = c.opts.MaxWait
		}
		c.retries.Add(1)
		metrics.RecordRetry()
		c.log.Warn("provider rate limited, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
		if err := c.opts.Sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
