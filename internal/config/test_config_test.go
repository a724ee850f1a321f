package config

import (
	"strings"
	"testing"
	"time"

	"summeriq/internal/tester"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("STORE_S3_ENDPOINT", "")

	cfg, err := FromEnv()
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Env, "local")
	tester.Eq(t, cfg.Port, ":8080")
	tester.Eq(t, cfg.Log.Format, "console")
	tester.Eq(t, cfg.Store.Backend, "fs")
	tester.Eq(t, cfg.Store.S3.Endpoint, "minio:9000")
	tester.Eq(t, cfg.Store.S3.UseSSL, false)
	tester.Eq(t, cfg.LLM.Provider, "openrouter")
	tester.Eq(t, cfg.LLM.APIKey, "or-key")
	tester.Eq(t, cfg.LLM.MaxAttempts, 5)
	tester.Eq(t, cfg.LLM.Cooldown, time.Second)
	tester.Eq(t, cfg.Analysis.CacheSize, 4096)
	tester.Eq(t, cfg.Analysis.CacheTTL, 24*time.Hour)
	tester.Eq(t, cfg.Docs.KeyFiles, 8)
	tester.Eq(t, cfg.Docs.Mode, "summary")
	tester.Eq(t, cfg.UploadMaxBytes, int64(64<<20))
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("LLM_COOLDOWN", "250ms")
	t.Setenv("STORE_BACKEND", "s3")
	t.Setenv("STORE_S3_ENDPOINT", "s3.example.com")
	t.Setenv("STORE_S3_ACCESS_KEY", "")
	t.Setenv("MINIO_ROOT_USER", "minio")
	t.Setenv("DOC_MODE", "analysis")
	t.Setenv("TREE_MAX_DEPTH", "4")

	cfg, err := FromEnv()
	tester.NoErr(t, err)
	tester.Eq(t, cfg.Port, ":9090")
	tester.Eq(t, cfg.Log.Format, "json")
	tester.Eq(t, cfg.LLM.Provider, "gemini")
	tester.Eq(t, cfg.LLM.APIKey, "g-key")
	tester.Eq(t, cfg.LLM.Cooldown, 250*time.Millisecond)
	tester.Eq(t, cfg.Store.S3.Endpoint, "s3.example.com")
	tester.Eq(t, cfg.Store.S3.AccessKey, "minio")
	tester.Eq(t, cfg.Store.S3.UseSSL, true)
	tester.Eq(t, cfg.Docs.Mode, "analysis")
	tester.Eq(t, cfg.Tree.MaxDepth, 4)
}

func TestFromEnvReportsEveryBadValue(t *testing.T) {
	t.Setenv("LLM_MAX_ATTEMPTS", "five")
	t.Setenv("ANALYSIS_CACHE_TTL", "forever")
	t.Setenv("STORE_S3_USE_SSL", "maybe")

	_, err := FromEnv()
	tester.True(t, err != nil, "expected an error")
	for _, name := range []string{"LLM_MAX_ATTEMPTS", "ANALYSIS_CACHE_TTL", "STORE_S3_USE_SSL"} {
		tester.True(t, strings.Contains(err.Error(), name), "error should name %s: %v", name, err)
	}
}
