package bytestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config picks and configures a backend.
type Config struct {
	Backend     string // fs, s3, postgres, sqlite, memory
	Root        string
	S3          S3Config
	PostgresDSN string
	SQLitePath  string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the configured store. The returned closer releases database
// handles and is safe to call for every backend.
func Open(cfg Config) (Store, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "fs", "file":
		root := cfg.Root
		if root == "" {
			root = "./storage"
		}
		st, err := NewFileStore(root)
		if err != nil {
			return nil, nil, err
		}
		return st, nopCloser{}, nil
	case "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "s3", "minio":
		st, err := NewS3Store(cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		return st, nopCloser{}, nil
	case "postgres", "pg":
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("postgres dsn is required")
		}
		st, err := OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "./storage/summeriq.db"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		st, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
