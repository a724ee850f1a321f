package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"summeriq/internal/archive"
	"summeriq/internal/bytestore"
	"summeriq/internal/config"
	"summeriq/internal/gateway/app"
	"summeriq/internal/logging"
)

// SetupLogging initializes the console logger before any command runs.
func SetupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if _, err := logging.Init(logging.Config{
		Level:      cmd.String("log-level"),
		Format:     "console",
		OutputPath: "stderr",
	}); err != nil {
		return ctx, fmt.Errorf("init logging: %w", err)
	}
	return ctx, nil
}

// loadConfig reads the env file and environment, then applies command flags.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if envFile := cmd.String("env"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	// The CLI never persists projects.
	cfg.Store.Backend = "memory"

	if cmd.IsSet("provider") {
		cfg.LLM.Provider = strings.ToLower(cmd.String("provider"))
	}
	if cmd.IsSet("model") {
		cfg.LLM.Model = cmd.String("model")
	}
	if cmd.IsSet("mode") {
		cfg.Docs.Mode = cmd.String("mode")
	}
	if cmd.IsSet("key-files") {
		cfg.Docs.KeyFiles = cmd.Int("key-files")
	}
	return cfg, nil
}

func buildDeps(ctx context.Context, cmd *cli.Command) (*app.Deps, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	deps, err := app.Build(ctx, cfg, logging.L())
	if err != nil {
		return nil, nil, err
	}
	return deps, cfg, nil
}

// source is a project tree the commands read from: a directory on disk or an
// archive unpacked in memory.
type source struct {
	name  string
	store bytestore.Store
}

func openSource(ctx context.Context, arg string, limits archive.Limits) (*source, error) {
	if arg == "" {
		return nil, fmt.Errorf("a directory or archive is required")
	}
	info, err := os.Stat(arg)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(filepath.Clean(arg)), ".zip")
	if info.IsDir() {
		st, err := bytestore.NewFileStore(arg)
		if err != nil {
			return nil, err
		}
		return &source{name: name, store: st}, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, err
	}
	st := bytestore.NewMemoryStore()
	written, err := archive.New(archive.WithLimits(limits), archive.WithLogger(logging.Named("archive"))).Extract(ctx, data, st)
	if err != nil {
		return nil, err
	}
	logging.L().Debug("archive unpacked", zap.String("archive", arg), zap.Int("files", len(written)))
	return &source{name: name, store: st}, nil
}

// writeOutput writes to path, or stdout when path is empty.
func writeOutput(path string, body []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(body)
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
