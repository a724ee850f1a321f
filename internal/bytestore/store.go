package bytestore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"summeriq/internal/safeio"
)

// Entry is one child returned by ListChildren.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// Store persists opaque blobs under '/'-joined keys and exposes a
// directory-like view of them. The empty key is the root.
type Store interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	ListChildren(ctx context.Context, dirKey string) ([]Entry, error)
	MakeDir(ctx context.Context, dirKey string) error
	RemoveAll(ctx context.Context, prefix string) error
}

// StreamWriter is implemented by stores that can copy from a reader without
// buffering the whole payload.
type StreamWriter interface {
	WriteFrom(ctx context.Context, key string, r io.Reader) (int64, error)
}

var ErrNotFound = errors.New("bytestore: not found")

// NormalizeKey cleans a caller supplied key. Traversal segments are rejected.
func NormalizeKey(key string) (string, error) {
	return safeio.CleanRel(strings.TrimSpace(key))
}

// JoinKey joins key segments with '/', skipping empty ones.
func JoinKey(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

func splitKey(key string) (parent, name string) {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

func ancestors(key string) []string {
	var out []string
	for dir := path.Dir(key); dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		out = append(out, dir)
	}
	return out
}

// Sub scopes every key of s under prefix.
func Sub(s Store, prefix string) Store {
	return &subStore{inner: s, prefix: strings.Trim(prefix, "/")}
}

type subStore struct {
	inner  Store
	prefix string
}

func (s *subStore) key(k string) (string, error) {
	clean, err := NormalizeKey(k)
	if err != nil {
		return "", err
	}
	return JoinKey(s.prefix, clean), nil
}

func (s *subStore) Write(ctx context.Context, key string, data []byte) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}
	return s.inner.Write(ctx, k, data)
}

func (s *subStore) WriteFrom(ctx context.Context, key string, r io.Reader) (int64, error) {
	k, err := s.key(key)
	if err != nil {
		return 0, err
	}
	if sw, ok := s.inner.(StreamWriter); ok {
		return sw.WriteFrom(ctx, k, r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), s.inner.Write(ctx, k, data)
}

func (s *subStore) Read(ctx context.Context, key string) ([]byte, error) {
	k, err := s.key(key)
	if err != nil {
		return nil, err
	}
	return s.inner.Read(ctx, k)
}

func (s *subStore) ListChildren(ctx context.Context, dirKey string) ([]Entry, error) {
	k, err := s.key(dirKey)
	if err != nil {
		return nil, err
	}
	return s.inner.ListChildren(ctx, k)
}

func (s *subStore) MakeDir(ctx context.Context, dirKey string) error {
	k, err := s.key(dirKey)
	if err != nil {
		return err
	}
	return s.inner.MakeDir(ctx, k)
}

func (s *subStore) RemoveAll(ctx context.Context, prefix string) error {
	k, err := s.key(prefix)
	if err != nil {
		return err
	}
	return s.inner.RemoveAll(ctx, k)
}
