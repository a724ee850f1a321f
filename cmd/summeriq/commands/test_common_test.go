package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summeriq/internal/archive"
)

func TestOpenSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))

	src, err := openSource(context.Background(), dir, archive.DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), src.name)
	got, err := src.store.Read(context.Background(), "main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main", string(got))
}

func TestOpenSourceArchive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("pkg/a.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("a"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "demo.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	src, err := openSource(context.Background(), path, archive.DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, "demo", src.name)
	got, err := src.store.Read(context.Background(), "pkg/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))
}

func TestOpenSourceRejectsMissingInput(t *testing.T) {
	_, err := openSource(context.Background(), "", archive.DefaultLimits())
	assert.Error(t, err)
	_, err = openSource(context.Background(), filepath.Join(t.TempDir(), "nope"), archive.DefaultLimits())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
