package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"summeriq/internal/analysis"
	"summeriq/internal/archive"
	"summeriq/internal/bytestore"
	"summeriq/internal/config"
	"summeriq/internal/docs"
	"summeriq/internal/events"
	"summeriq/internal/llm"
	llmclient "summeriq/internal/llm/client"
	"summeriq/internal/logging"
	"summeriq/internal/project"
	"summeriq/internal/sanitize"
)

var defaultModels = map[string]string{
	"openrouter": "anthropic/claude-3-opus:beta",
	"openai":     "gpt-4o-mini",
	"gemini":     "gemini-2.5-flash",
}

// Deps is everything the server and the CLI build from one Config.
type Deps struct {
	Store   bytestore.Store
	LLM     *llm.Client
	Cache   *analysis.Cache
	Project *project.Service
	Events  *events.Broadcaster

	closer io.Closer
}

func (d *Deps) Close() error {
	if d == nil || d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Build wires the store, provider chain, caches and project service.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Deps, error) {
	log = logging.OrNop(log)
	store, closer, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(ctx, cfg.LLM)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	log.Info("llm provider", zap.String("name", provider.Name()))
	provider = llm.Wrap(provider,
		llm.WithLogging(log.Named("provider")),
		llm.WithMetrics(),
		llm.WithTimeout(cfg.LLM.Timeout),
	)

	san, err := newSanitizer(cfg.SanitizeRules)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	counter := llmclient.HeuristicCounter()
	if cfg.LLM.MaxPromptTokens > 0 {
		counter = llmclient.DefaultCounter()
	}
	client := llm.New(provider, llm.Options{
		Sanitizer:       san,
		MaxAttempts:     cfg.LLM.MaxAttempts,
		DefaultWait:     cfg.LLM.DefaultWait,
		MaxWait:         cfg.LLM.MaxWait,
		Cooldown:        clientCooldown(cfg.LLM.Cooldown),
		MaxPromptTokens: cfg.LLM.MaxPromptTokens,
		Counter:         counter,
		Logger:          log.Named("llm"),
	})

	cache := analysis.New(client, analysis.Config{
		Size:   cfg.Analysis.CacheSize,
		TTL:    cfg.Analysis.CacheTTL,
		Logger: log.Named("analysis"),
	})

	mode, ok := docs.ParseMode(cfg.Docs.Mode)
	if !ok {
		_ = closer.Close()
		return nil, fmt.Errorf("unknown DOC_MODE %q", cfg.Docs.Mode)
	}

	bus := events.NewBroadcaster()
	svc, err := project.New(store, client, cache, project.Options{
		Extractor:  archive.New(archive.WithLimits(cfg.Extract), archive.WithLogger(log.Named("archive"))),
		TreeLimits: cfg.Tree,
		Docs: docs.Options{
			KeyFiles:    cfg.Docs.KeyFiles,
			Mode:        mode,
			Concurrency: cfg.Docs.Concurrency,
		},
		Events: bus,
		Logger: log,
	})
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &Deps{
		Store:   store,
		LLM:     client,
		Cache:   cache,
		Project: svc,
		Events:  bus,
		closer:  closer,
	}, nil
}

func openStore(cfg *config.Config, log *zap.Logger) (bytestore.Store, io.Closer, error) {
	store, closer, err := bytestore.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s store: %w", cfg.Store.Backend, err)
	}
	switch strings.ToLower(cfg.Store.Backend) {
	case "s3", "minio":
		log.Info("byte store: s3", zap.String("bucket", cfg.Store.S3.Bucket), zap.String("endpoint", cfg.Store.S3.Endpoint))
	case "postgres", "pg":
		log.Info("byte store: postgres")
	case "sqlite":
		log.Info("byte store: sqlite", zap.String("path", cfg.Store.SQLitePath))
	case "memory":
		log.Info("byte store: in-memory")
	default:
		log.Info("byte store: fs", zap.String("root", cfg.Store.Root))
	}
	return store, closer, nil
}

func newProvider(ctx context.Context, cfg config.LLMConfig) (llmclient.Provider, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModels[cfg.Provider]
	}
	switch cfg.Provider {
	case "fake":
		return llmclient.NewFakeClient(), nil
	case "openrouter":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openrouter: api key is required")
		}
		return llmclient.NewOpenRouterClient(cfg.APIKey, model, cfg.Timeout, llmclient.WithBaseURL(cfg.BaseURL)), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai: api key is required")
		}
		return llmclient.NewOpenAIClient(cfg.APIKey, model, cfg.BaseURL), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini: api key is required")
		}
		return llmclient.NewGeminiClient(ctx, cfg.APIKey, model)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.Provider)
	}
}

// clientCooldown maps LLM_COOLDOWN onto llm.Options, where zero means the
// default. A configured zero disables the pause.
func clientCooldown(d time.Duration) time.Duration {
	if d <= 0 {
		return -1
	}
	return d
}

func newSanitizer(path string) (*sanitize.Sanitizer, error) {
	if path == "" {
		return sanitize.Default(), nil
	}
	rules, err := sanitize.LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load sanitizer rules: %w", err)
	}
	return sanitize.New(rules), nil
}
