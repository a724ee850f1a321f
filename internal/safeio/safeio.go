package safeio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var ErrOutsideRoot = errors.New("safeio: path resolves outside root")

// SanitizeEntryName turns an untrusted archive entry name into a relative,
// '/'-joined path. Both separators are honoured and empty, "." and ".."
// segments are dropped. A leading drive volume such as "C:" is stripped.
// ok is false when nothing usable remains or the name carries a NUL byte.
func SanitizeEntryName(name string) (rel string, ok bool) {
	if strings.ContainsRune(name, 0) {
		return "", false
	}
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) > 0 && isDriveVolume(parts[0]) {
		parts = parts[1:]
	}
	kept := parts[:0]
	for _, p := range parts {
		if p == "." || p == ".." {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return "", false
	}
	rel = strings.Join(kept, "/")
	if filepath.IsAbs(rel) {
		return "", false
	}
	return rel, true
}

func isDriveVolume(seg string) bool {
	if len(seg) != 2 || seg[1] != ':' {
		return false
	}
	c := seg[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// CleanRel normalises a caller-supplied relative path. Unlike
// SanitizeEntryName it rejects traversal instead of silently dropping it.
func CleanRel(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return "", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("safeio: path traversal not allowed: %q", p)
		}
	}
	clean := filepath.ToSlash(filepath.Clean(p))
	if clean == "." {
		return "", nil
	}
	return clean, nil
}

// Root pins filesystem writes and reads to one directory.
type Root struct {
	abs string // absolute root with symlinks resolved
}

// NewRoot resolves root to an absolute, symlink-free directory, creating it
// when missing.
func NewRoot(root string) (*Root, error) {
	if root == "" {
		return nil, errors.New("safeio: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("safeio: root is not a directory")
	}
	return &Root{abs: abs}, nil
}

func (r *Root) Path() string { return r.abs }

// Join maps a relative '/'-path onto the root. The result, and the deepest
// ancestor of it that already exists (after resolving symlinks), must stay
// under the root.
func (r *Root) Join(rel string) (string, error) {
	clean, err := CleanRel(rel)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return r.abs, nil
	}
	joined := filepath.Join(r.abs, filepath.FromSlash(clean))
	if !hasPathPrefix(joined, r.abs) {
		return "", fmt.Errorf("%w (root=%s, path=%s)", ErrOutsideRoot, r.abs, joined)
	}
	existing := joined
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolved, r.abs) {
		return "", fmt.Errorf("%w (root=%s, path=%s)", ErrOutsideRoot, r.abs, resolved)
	}
	return joined, nil
}

// Contains reports whether path lies at or under root.
func Contains(root, path string) bool { return hasPathPrefix(path, root) }

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if len(root) == 0 {
		return true
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	if !strings.HasSuffix(path, sep) {
		path += sep
	}
	return strings.HasPrefix(path, root)
}
