package bytestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"summeriq/internal/safeio"
)

// FileStore maps keys onto files under a root directory.
type FileStore struct {
	root *safeio.Root
}

func NewFileStore(root string) (*FileStore, error) {
	r, err := safeio.NewRoot(root)
	if err != nil {
		return nil, fmt.Errorf("file store root: %w", err)
	}
	return &FileStore{root: r}, nil
}

func (s *FileStore) Root() string { return s.root.Path() }

func (s *FileStore) Write(_ context.Context, key string, data []byte) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (s *FileStore) WriteFrom(_ context.Context, key string, r io.Reader) (int64, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (s *FileStore) Read(_ context.Context, key string) ([]byte, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("bytestore: %s is a directory", key)
	}
	return os.ReadFile(p)
}

func (s *FileStore) MakeDir(_ context.Context, dirKey string) error {
	p, err := s.root.Join(dirKey)
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0o755)
}

// ListChildren skips symlinks so a listing never leaves the root.
func (s *FileStore) ListChildren(_ context.Context, dirKey string) ([]Entry, error) {
	p, err := s.root.Join(dirKey)
	if err != nil {
		return nil, err
	}
	des, err := os.ReadDir(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	out := make([]Entry, 0, len(des))
	for _, d := range des {
		if d.Type()&fs.ModeSymlink != 0 {
			continue
		}
		out = append(out, Entry{Name: d.Name(), IsDir: d.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileStore) RemoveAll(_ context.Context, prefix string) error {
	p, err := s.root.Join(prefix)
	if err != nil {
		return err
	}
	if p == s.root.Path() {
		return fmt.Errorf("bytestore: refusing to remove store root")
	}
	return os.RemoveAll(p)
}

func (s *FileStore) pathFor(key string) (string, error) {
	if s == nil || s.root == nil {
		return "", fmt.Errorf("file store is not configured")
	}
	k, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	if k == "" {
		return "", fmt.Errorf("key is required")
	}
	return s.root.Join(k)
}
