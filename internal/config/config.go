package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"summeriq/internal/archive"
	"summeriq/internal/bytestore"
	"summeriq/internal/logging"
	"summeriq/internal/tree"
)

type Config struct {
	Port string
	Env  string

	Log            logging.Config
	Store          bytestore.Config
	UploadMaxBytes int64
	Extract        archive.Limits
	Tree           tree.Limits
	LLM            LLMConfig
	SanitizeRules  string // yaml path; empty keeps the built-in rules
	Analysis       AnalysisConfig
	Docs           DocsConfig
}

type LLMConfig struct {
	Provider        string // openrouter, openai, gemini, fake
	Model           string
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	Cooldown        time.Duration // 0 disables
	MaxAttempts     int
	DefaultWait     time.Duration
	MaxWait         time.Duration
	MaxPromptTokens int
}

type AnalysisConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

type DocsConfig struct {
	KeyFiles    int
	Mode        string
	Concurrency int
}

// Load reads .env, the environment and the -port flag. It is meant for the
// server binary; the CLI uses FromEnv.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if os.Getenv("PORT") == "" {
		cfg.Port = normalizePort(*port)
	}
	return cfg, nil
}

// FromEnv reads configuration from the environment only. Every malformed
// value is reported, each naming its variable.
func FromEnv() (*Config, error) {
	e := &env{}

	appEnv := firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), "local")
	local := strings.EqualFold(appEnv, "local")

	defLimits := archive.DefaultLimits()
	defTree := tree.DefaultLimits()

	cfg := &Config{
		Port: normalizePort(firstNonEmpty(strings.TrimSpace(os.Getenv("PORT")), "8080")),
		Env:  appEnv,
		Log: logging.Config{
			Level:  firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "info"),
			Format: firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_FORMAT")), logFormat(local)),
		},
		Store:          loadStoreConfig(e, local),
		UploadMaxBytes: e.int64("UPLOAD_MAX_BYTES", 64<<20),
		Extract: archive.Limits{
			MaxEntries:    e.int("EXTRACT_MAX_ENTRIES", defLimits.MaxEntries),
			MaxFileBytes:  e.int64("EXTRACT_MAX_FILE_BYTES", defLimits.MaxFileBytes),
			MaxTotalBytes: e.int64("EXTRACT_MAX_TOTAL_BYTES", defLimits.MaxTotalBytes),
		},
		Tree: tree.Limits{
			MaxDepth: e.int("TREE_MAX_DEPTH", defTree.MaxDepth),
			MaxNodes: e.int("TREE_MAX_NODES", defTree.MaxNodes),
		},
		LLM:           loadLLMConfig(e),
		SanitizeRules: strings.TrimSpace(os.Getenv("SANITIZE_RULES")),
		Analysis: AnalysisConfig{
			CacheSize: e.int("ANALYSIS_CACHE_SIZE", 4096),
			CacheTTL:  e.duration("ANALYSIS_CACHE_TTL", 24*time.Hour),
		},
		Docs: DocsConfig{
			KeyFiles:    e.int("DOC_KEY_FILES", 8),
			Mode:        firstNonEmpty(strings.TrimSpace(os.Getenv("DOC_MODE")), "summary"),
			Concurrency: e.int("DOC_CONCURRENCY", 4),
		},
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadStoreConfig(e *env, local bool) bytestore.Config {
	return bytestore.Config{
		Backend: firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_BACKEND")), "fs"),
		Root:    firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_ROOT")), "./storage"),
		S3: bytestore.S3Config{
			Endpoint:  resolveS3Endpoint(local),
			Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_S3_REGION")), "us-east-1"),
			AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
			SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
			Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_S3_BUCKET")), "summeriq"),
			UseSSL:    e.bool("STORE_S3_USE_SSL", !local),
		},
		PostgresDSN: strings.TrimSpace(os.Getenv("STORE_PG_DSN")),
		SQLitePath:  firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_SQLITE_PATH")), "./storage/summeriq.db"),
	}
}

func resolveS3Endpoint(local bool) string {
	if local {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("STORE_S3_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("STORE_S3_ENDPOINT"))
}

var providerKeyVars = map[string]string{
	"openrouter": "OPENROUTER_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

func loadLLMConfig(e *env) LLMConfig {
	provider := strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_PROVIDER")), "openrouter"))
	key := strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	if v, ok := providerKeyVars[provider]; ok {
		key = firstNonEmpty(key, strings.TrimSpace(os.Getenv(v)))
	}
	return LLMConfig{
		Provider:        provider,
		Model:           strings.TrimSpace(os.Getenv("LLM_MODEL")),
		APIKey:          key,
		BaseURL:         strings.TrimSpace(os.Getenv("LLM_BASE_URL")),
		Timeout:         e.duration("LLM_TIMEOUT", 60*time.Second),
		Cooldown:        e.duration("LLM_COOLDOWN", time.Second),
		MaxAttempts:     e.int("LLM_MAX_ATTEMPTS", 5),
		DefaultWait:     e.duration("LLM_DEFAULT_WAIT", time.Second),
		MaxWait:         e.duration("LLM_MAX_WAIT", 60*time.Second),
		MaxPromptTokens: e.int("LLM_MAX_PROMPT_TOKENS", 0),
	}
}

func logFormat(local bool) string {
	if local {
		return "console"
	}
	return "json"
}

func normalizePort(p string) string {
	if strings.HasPrefix(p, ":") {
		return p
	}
	return ":" + p
}

// env collects parse errors so all bad variables surface at once.
type env struct {
	errs []error
}

func (e *env) lookup(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	return v, v != ""
}

func (e *env) int(name string, def int) int {
	raw, ok := e.lookup(name)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: invalid integer %q", name, raw))
		return def
	}
	return v
}

func (e *env) int64(name string, def int64) int64 {
	raw, ok := e.lookup(name)
	if !ok {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: invalid integer %q", name, raw))
		return def
	}
	return v
}

func (e *env) duration(name string, def time.Duration) time.Duration {
	raw, ok := e.lookup(name)
	if !ok {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: invalid duration %q", name, raw))
		return def
	}
	return v
}

func (e *env) bool(name string, def bool) bool {
	raw, ok := e.lookup(name)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: invalid boolean %q", name, raw))
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
