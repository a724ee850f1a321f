package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmclient "summeriq/internal/llm/client"
)

// stubProvider replays scripted results in order; the last one repeats.
type stubProvider struct {
	mu      sync.Mutex
	results []result
	calls   int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

type result struct {
	text string
	err  error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Send(ctx context.Context, _ llmclient.Request) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxInFlight.Load()
		if n <= cur || s.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	return s.results[i].text, s.results[i].err
}

func (s *stubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return nil
}

func status(code int, body string) error {
	return &llmclient.StatusError{Provider: "stub", StatusCode: code, Body: body}
}

func TestRateLimitRetriesWithParsedHint(t *testing.T) {
	p := &stubProvider{results: []result{
		{err: status(http.StatusTooManyRequests, "try again in 250ms")},
		{text: "done"},
	}}
	rec := &sleepRecorder{}
	c := New(p, Options{Cooldown: -1, Sleep: rec.sleep})

	out, err := c.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	require.Equal(t, "done", out)
	require.Equal(t, 2, p.Calls())
	require.Equal(t, []time.Duration{250 * time.Millisecond}, rec.waits)
	require.Equal(t, Stats{Attempts: 2, Retries: 1}, c.Stats())
}

func TestRateLimitRetryActuallySleeps(t *testing.T) {
	p := &stubProvider{results: []result{
		{err: status(http.StatusTooManyRequests, "try again in 250ms")},
		{text: "ok"},
	}}
	c := New(p, Options{Cooldown: -1})
	start := time.Now()
	_, err := c.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 240*time.Millisecond)
	require.EqualValues(t, 1, c.Stats().Retries)
}

func TestRateLimitCeiling(t *testing.T) {
	p := &stubProvider{results: []result{{err: status(429, "slow down")}}}
	rec := &sleepRecorder{}
	c := New(p, Options{Cooldown: -1, Sleep: rec.sleep, DefaultWait: 10 * time.Millisecond})

	_, err := c.Complete(context.Background(), "prompt")
	require.True(t, IsKind(err, KindRateLimited), "got %v", err)
	require.Equal(t, DefaultMaxAttempts, p.Calls())
	require.Len(t, rec.waits, DefaultMaxAttempts-1)
	for _, w := range rec.waits {
		require.Equal(t, 10*time.Millisecond, w)
	}
}

func TestWaitIsCapped(t *testing.T) {
	p := &stubProvider{results: []result{{err: status(429, "try again in 10 minutes")}, {text: "ok"}}}
	rec := &sleepRecorder{}
	c := New(p, Options{Cooldown: -1, Sleep: rec.sleep, MaxWait: 3 * time.Second})
	_, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{3 * time.Second}, rec.waits)
}

func TestNonRetryableFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"auth", status(401, "bad key"), KindAuthFailure},
		{"forbidden", status(403, "nope"), KindAuthFailure},
		{"unavailable", status(503, "overloaded"), KindUnavailable},
		{"too large status", status(413, "payload"), KindOther},
		{"too large body", status(400, `{"code":"context_length_exceeded"}`), KindOther},
		{"bad request", status(400, "bad"), KindOther},
		{"transport", errors.New("connection refused"), KindUnavailable},
		{"malformed", errors.Join(llmclient.ErrMalformed), KindMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubProvider{results: []result{{err: tc.err}}}
			c := New(p, Options{Cooldown: -1, Sleep: (&sleepRecorder{}).sleep})
			_, err := c.Complete(context.Background(), "p")
			require.True(t, IsKind(err, tc.kind), "got %v", err)
			require.Equal(t, 1, p.Calls(), "must not retry")
		})
	}
}

func TestTooLargeIsMarked(t *testing.T) {
	p := &stubProvider{results: []result{{err: status(413, "")}}}
	c := New(p, Options{Cooldown: -1})
	_, err := c.Complete(context.Background(), "p")
	require.True(t, errors.Is(err, ErrTooLarge))
}

func TestPreflightRejectsOversizePrompt(t *testing.T) {
	p := &stubProvider{results: []result{{text: "never"}}}
	c := New(p, Options{Cooldown: -1, MaxPromptTokens: 3})
	_, err := c.Complete(context.Background(), "one two three four five")
	require.True(t, errors.Is(err, ErrTooLarge))
	require.Equal(t, 0, p.Calls())
}

func TestCompletionIsSanitized(t *testing.T) {
	p := &stubProvider{results: []result{{text: "<think>reasoning</think>\nAlright, here is the answer.\nThis file configures the server."}}}
	c := New(p, Options{Cooldown: -1})
	out, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "This file configures the server.", out)
}

func TestEmptyAfterSanitizeIsMalformed(t *testing.T) {
	p := &stubProvider{results: []result{{text: "<think>only thoughts</think>"}}}
	c := New(p, Options{Cooldown: -1})
	_, err := c.Complete(context.Background(), "p")
	require.True(t, IsKind(err, KindMalformedResponse), "got %v", err)
}

func TestCooldownAfterSuccess(t *testing.T) {
	p := &stubProvider{results: []result{{text: "ok"}}}
	rec := &sleepRecorder{}
	c := New(p, Options{Cooldown: 700 * time.Millisecond, Sleep: rec.sleep})
	_, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{700 * time.Millisecond}, rec.waits)
}

func TestGateSerializesAcrossClients(t *testing.T) {
	gate := NewGate()
	p := &stubProvider{results: []result{{text: "ok"}}, delay: 20 * time.Millisecond}
	a := New(p, Options{Gate: gate, Cooldown: -1})
	b := New(p, Options{Gate: gate, Cooldown: -1})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		c := a
		if i%2 == 1 {
			c = b
		}
		go func() {
			defer wg.Done()
			_, err := c.Complete(context.Background(), "p")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, p.maxInFlight.Load())
	require.Equal(t, 8, p.Calls())
}

func TestGateAcquireHonoursContext(t *testing.T) {
	g := NewGate()
	require.NoError(t, g.Acquire(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, g.Acquire(ctx), context.DeadlineExceeded)
	g.Release()
}

func TestContextCancelDuringRetryWait(t *testing.T) {
	p := &stubProvider{results: []result{{err: status(429, "try again in 5s")}}}
	c := New(p, Options{Cooldown: -1})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, "p")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, p.Calls())
}

func TestRetryAfterHeaderFallback(t *testing.T) {
	se := &llmclient.StatusError{StatusCode: 429, Body: "quota", RetryAfter: 4 * time.Second}
	pe := Classify(se)
	require.Equal(t, KindRateLimited, pe.Kind)
	require.Equal(t, 4*time.Second, pe.RetryAfter)
}

func TestParseWaitHint(t *testing.T) {
	cases := map[string]time.Duration{
		"try again in 250ms":                        250 * time.Millisecond,
		"Please try again in 1.5s.":                 1500 * time.Millisecond,
		"retry after 2 seconds":                     2 * time.Second,
		"Please try again in 2m59.56s":              2*time.Minute + 59560*time.Millisecond,
		`[{"retryDelay": "23s"}]`:                   23 * time.Second,
		"Retry after 3":                             3 * time.Second,
		"rate limited, wait 400 milliseconds please": 400 * time.Millisecond,
	}
	for in, want := range cases {
		got, ok := ParseWaitHint(in)
		require.True(t, ok, in)
		require.InDelta(t, float64(want), float64(got), float64(time.Millisecond), in)
	}
	_, ok := ParseWaitHint("try again in a moment")
	require.False(t, ok)
}
