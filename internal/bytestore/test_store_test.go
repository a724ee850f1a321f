package bytestore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	sqlStore, err := OpenSQLite(filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"fs":     fsStore,
		"sqlite": sqlStore,
	}
}

func TestStoreRoundTripAndListing(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Write(ctx, "p/src/main.go", []byte("package main")))
			require.NoError(t, st.Write(ctx, "p/README.md", []byte("# hi")))
			require.NoError(t, st.MakeDir(ctx, "p/empty"))

			got, err := st.Read(ctx, "p/src/main.go")
			require.NoError(t, err)
			require.Equal(t, "package main", string(got))

			entries, err := st.ListChildren(ctx, "p")
			require.NoError(t, err)
			require.Equal(t, []Entry{
				{Name: "README.md", IsDir: false},
				{Name: "empty", IsDir: true},
				{Name: "src", IsDir: true},
			}, entries)

			sub, err := st.ListChildren(ctx, "p/empty")
			require.NoError(t, err)
			require.Empty(t, sub)
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Read(ctx, "missing/file")
			require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
			_, err = st.ListChildren(ctx, "missing")
			require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
		})
	}
}

func TestStoreRemoveAll(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Write(ctx, "a/x.txt", []byte("1")))
			require.NoError(t, st.Write(ctx, "a/b/y.txt", []byte("2")))
			require.NoError(t, st.Write(ctx, "ab/z.txt", []byte("3")))
			require.NoError(t, st.RemoveAll(ctx, "a"))

			_, err := st.Read(ctx, "a/b/y.txt")
			require.True(t, errors.Is(err, ErrNotFound))
			got, err := st.Read(ctx, "ab/z.txt")
			require.NoError(t, err)
			require.Equal(t, "3", string(got))
		})
	}
}

func TestStoreRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.Error(t, st.Write(ctx, "../escape.txt", []byte("x")))
		})
	}
}

func TestSubStoreScopesKeys(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	sub := Sub(mem, "projects/42/files")

	require.NoError(t, sub.Write(ctx, "main.go", []byte("x")))
	n, err := sub.(StreamWriter).WriteFrom(ctx, "lib/util.go", strings.NewReader("yy"))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	raw, err := mem.Read(ctx, "projects/42/files/lib/util.go")
	require.NoError(t, err)
	require.Equal(t, "yy", string(raw))

	entries, err := sub.ListChildren(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestStoreRejectsWriteBelowFile(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	for name, st := range map[string]Store{"memory": NewMemoryStore(), "fs": fsStore} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Write(ctx, "docs", []byte("flat")))
			require.Error(t, st.Write(ctx, "docs/readme.md", []byte("nested")))

			got, err := st.Read(ctx, "docs")
			require.NoError(t, err)
			require.Equal(t, "flat", string(got))
		})
	}
}
