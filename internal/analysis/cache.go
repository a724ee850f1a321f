// Package analysis memoizes per-file provider analyses by content digest.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"summeriq/internal/flight"
	"summeriq/internal/logging"
	"summeriq/internal/metrics"
	"summeriq/internal/selector"
)

// Completer is the provider-facing dependency; *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Record is immutable once stored.
type Record struct {
	Path         string    `json:"path"`
	Language     string    `json:"language"`
	Purpose      string    `json:"purpose"`
	Dependencies []string  `json:"dependencies"`
	Timestamp    time.Time `json:"timestamp"`
	RawContent   string    `json:"raw_content"`
}

type Config struct {
	// Size bounds each namespace; 0 means unbounded.
	Size int
	// TTL of 0 disables expiry.
	TTL    time.Duration
	Logger *zap.Logger
	Now    func() time.Time
}

func DefaultConfig() Config {
	return Config{Size: 4096, TTL: 24 * time.Hour}
}

type Stats struct {
	Hits   uint64
	Misses uint64
}

type Cache struct {
	llm Completer
	log *zap.Logger
	now func() time.Time

	records   *expirable.LRU[string, *Record]
	summaries *expirable.LRU[string, string]
	group     singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

func New(c Completer, cfg Config) *Cache {
	if cfg.Size < 0 {
		cfg.Size = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		llm:       c,
		log:       logging.OrNop(cfg.Logger),
		now:       cfg.Now,
		records:   expirable.NewLRU[string, *Record](cfg.Size, nil, cfg.TTL),
		summaries: expirable.NewLRU[string, string](cfg.Size, nil, cfg.TTL),
	}
}

// Key is the hex sha256 of path, a NUL separator, and content.
func Key(path, content string) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// flightBound caps a shared provider run once it is detached from callers.
const flightBound = 10 * time.Minute

// Analyze returns the record for (path, content), calling the provider only
// on the first request for that pair. Concurrent misses share one
// computation, which a cancelled caller does not abort. Failures are not
// cached.
func (c *Cache) Analyze(ctx context.Context, path, content string) (*Record, error) {
	key := Key(path, content)
	if rec, ok := c.records.Get(key); ok {
		c.hit()
		return rec, nil
	}
	return flight.Do(ctx, &c.group, "a:"+key, flightBound, func(ctx context.Context) (*Record, error) {
		if rec, ok := c.records.Get(key); ok {
			c.hit()
			return rec, nil
		}
		c.miss()
		rec, err := c.analyze(ctx, path, content)
		if err != nil {
			return nil, err
		}
		c.records.Add(key, rec)
		return rec, nil
	})
}

func (c *Cache) analyze(ctx context.Context, path, content string) (*Record, error) {
	purpose, err := c.llm.Complete(ctx, purposePrompt(path, content))
	if err != nil {
		return nil, fmt.Errorf("analyze %s: purpose: %w", path, err)
	}
	deps, err := c.llm.Complete(ctx, dependencyPrompt(path, content))
	if err != nil {
		return nil, fmt.Errorf("analyze %s: dependencies: %w", path, err)
	}
	c.log.Debug("file analyzed", zap.String("path", path), zap.Int("bytes", len(content)))
	return &Record{
		Path:         path,
		Language:     selector.Language(path, []byte(content)),
		Purpose:      purpose,
		Dependencies: ParseDependencies(deps),
		Timestamp:    c.now().UTC(),
		RawContent:   content,
	}, nil
}

// Summarize is the single-prompt variant used for documentation. It has
// its own namespace and the same at-most-once behaviour as Analyze.
func (c *Cache) Summarize(ctx context.Context, path, content string) (string, error) {
	key := Key(path, content)
	if s, ok := c.summaries.Get(key); ok {
		c.hit()
		return s, nil
	}
	return flight.Do(ctx, &c.group, "s:"+key, flightBound, func(ctx context.Context) (string, error) {
		if s, ok := c.summaries.Get(key); ok {
			c.hit()
			return s, nil
		}
		c.miss()
		s, err := c.llm.Complete(ctx, summaryPrompt(path, content))
		if err != nil {
			return "", fmt.Errorf("summarize %s: %w", path, err)
		}
		c.summaries.Add(key, s)
		return s, nil
	})
}

func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Len reports stored records across both namespaces.
func (c *Cache) Len() int { return c.records.Len() + c.summaries.Len() }

func (c *Cache) Purge() {
	c.records.Purge()
	c.summaries.Purge()
}

func (c *Cache) hit() {
	c.hits.Add(1)
	metrics.RecordCacheHit()
}

func (c *Cache) miss() {
	c.misses.Add(1)
	metrics.RecordCacheMiss()
}
