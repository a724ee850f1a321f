package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"summeriq/internal/config"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LLM_PROVIDER", "fake")
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	cfg.LLM.Cooldown = -1
	return cfg
}

func TestBuildWithFakeProvider(t *testing.T) {
	cfg := memoryConfig(t)
	deps, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer deps.Close()

	out, err := deps.LLM.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.NotNil(t, deps.Project)
	assert.Same(t, deps.Events, deps.Project.Events())
}

func TestBuildRejectsBadSettings(t *testing.T) {
	ctx := context.Background()

	cfg := memoryConfig(t)
	cfg.LLM.Provider = "carrier-pigeon"
	_, err := Build(ctx, cfg, zap.NewNop())
	assert.ErrorContains(t, err, "carrier-pigeon")

	cfg = memoryConfig(t)
	cfg.LLM.Provider = "openrouter"
	cfg.LLM.APIKey = ""
	_, err = Build(ctx, cfg, zap.NewNop())
	assert.ErrorContains(t, err, "api key")

	cfg = memoryConfig(t)
	cfg.Docs.Mode = "poetry"
	_, err = Build(ctx, cfg, zap.NewNop())
	assert.ErrorContains(t, err, "poetry")
}

func TestBuildLoadsSanitizerRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prefixes: [\"Generated\"]\n"), 0o644))

	cfg := memoryConfig(t)
	cfg.SanitizeRules = path
	deps, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer deps.Close()

	cfg.SanitizeRules = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Build(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestClientCooldown(t *testing.T) {
	assert.Equal(t, time.Duration(-1), clientCooldown(0))
	assert.Equal(t, time.Duration(-1), clientCooldown(-time.Second))
	assert.Equal(t, 250*time.Millisecond, clientCooldown(250*time.Millisecond))
}

func TestZeroCooldownFromEnvDisablesPause(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LLM_PROVIDER", "fake")
	t.Setenv("LLM_COOLDOWN", "0")
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	require.Zero(t, cfg.LLM.Cooldown)

	deps, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer deps.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := deps.LLM.Complete(context.Background(), "hello")
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
