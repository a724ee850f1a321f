package bytestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps everything in process memory. Used by tests and the
// "memory" backend.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string][]byte),
		dirs:  make(map[string]struct{}),
	}
}

func (s *MemoryStore) Write(_ context.Context, key string, data []byte) error {
	k, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	if k == "" {
		return fmt.Errorf("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, isDir := s.dirs[k]; isDir {
		return fmt.Errorf("bytestore: %s is a directory", k)
	}
	parents := ancestors(k)
	for _, dir := range parents {
		if _, isFile := s.files[dir]; isFile {
			return fmt.Errorf("bytestore: %s is a file", dir)
		}
	}
	for _, dir := range parents {
		s.dirs[dir] = struct{}{}
	}
	s.files[k] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Read(_ context.Context, key string) ([]byte, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.files[k]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) MakeDir(_ context.Context, dirKey string) error {
	k, err := NormalizeKey(dirKey)
	if err != nil {
		return err
	}
	if k == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, isFile := s.files[k]; isFile {
		return fmt.Errorf("bytestore: %s is a file", k)
	}
	s.dirs[k] = struct{}{}
	for _, dir := range ancestors(k) {
		s.dirs[dir] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) ListChildren(_ context.Context, dirKey string) ([]Entry, error) {
	k, err := NormalizeKey(dirKey)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k != "" {
		if _, ok := s.dirs[k]; !ok {
			return nil, ErrNotFound
		}
	}
	seen := make(map[string]bool)
	collect := func(key string, isDir bool) {
		parent, name := splitKey(key)
		if parent == k && key != "" {
			seen[name] = isDir
		}
	}
	for key := range s.files {
		collect(key, false)
	}
	for key := range s.dirs {
		collect(key, true)
	}
	out := make([]Entry, 0, len(seen))
	for name, isDir := range seen {
		out = append(out, Entry{Name: name, IsDir: isDir})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) RemoveAll(_ context.Context, prefix string) error {
	k, err := NormalizeKey(prefix)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	under := func(key string) bool {
		return k == "" || key == k || strings.HasPrefix(key, k+"/")
	}
	for key := range s.files {
		if under(key) {
			delete(s.files, key)
		}
	}
	for key := range s.dirs {
		if under(key) {
			delete(s.dirs, key)
		}
	}
	return nil
}
