package llmclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeClient is a deterministic provider for offline runs and tests. Reply
// decides each response; when nil, a short summary derived from the prompt
// is returned.
type FakeClient struct {
	Reply func(n int, req Request) (string, error)

	mu    sync.Mutex
	calls []Request
}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "fake" }

func (f *FakeClient) Send(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	if f.Reply != nil {
		return f.Reply(n, req)
	}
	first := strings.TrimSpace(req.Prompt)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if len(first) > 80 {
		first = first[:80]
	}
	return fmt.Sprintf("Generated response #%d for: %s", n, first), nil
}

// Calls is how many times Send ran.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Requests returns a copy of every request seen.
func (f *FakeClient) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}
