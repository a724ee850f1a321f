package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	llmclient "summeriq/internal/llm/client"
	"summeriq/internal/logging"
	"summeriq/internal/metrics"
)

// Middleware decorates a Provider with a cross-cutting concern.
type Middleware func(llmclient.Provider) llmclient.Provider

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.Provider, mws ...Middleware) llmclient.Provider {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// WithLogging logs request size and failures of every attempt.
func WithLogging(log *zap.Logger) Middleware {
	log = logging.OrNop(log)
	return func(next llmclient.Provider) llmclient.Provider {
		return &logged{next: next, log: log.With(zap.String("provider", next.Name()))}
	}
}

type logged struct {
	next llmclient.Provider
	log  *zap.Logger
}

func (l *logged) Name() string { return l.next.Name() }

func (l *logged) Send(ctx context.Context, req llmclient.Request) (string, error) {
	l.log.Debug("provider request", zap.Int("bytes", len(req.Prompt)+len(req.System)))
	out, err := l.next.Send(ctx, req)
	if err != nil {
		l.log.Debug("provider error", zap.Error(err))
	}
	return out, err
}

// WithMetrics records outcome and latency per attempt.
func WithMetrics() Middleware {
	return func(next llmclient.Provider) llmclient.Provider {
		return &measured{next: next}
	}
}

type measured struct {
	next llmclient.Provider
}

func (m *measured) Name() string { return m.next.Name() }

func (m *measured) Send(ctx context.Context, req llmclient.Request) (string, error) {
	start := time.Now()
	out, err := m.next.Send(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = Classify(err).Kind.String()
	}
	metrics.RecordProviderCall(m.next.Name(), outcome, time.Since(start))
	return out, err
}

// WithTimeout bounds every attempt by d. Zero leaves attempts unbounded.
func WithTimeout(d time.Duration) Middleware {
	return func(next llmclient.Provider) llmclient.Provider {
		if d <= 0 {
			return next
		}
		return &timed{next: next, d: d}
	}
}

type timed struct {
	next llmclient.Provider
	d    time.Duration
}

func (t *timed) Name() string { return t.next.Name() }

func (t *timed) Send(ctx context.Context, req llmclient.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Send(ctx, req)
}
