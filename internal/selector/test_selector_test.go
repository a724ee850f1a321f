package selector

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summeriq/internal/tree"
)

func files(paths ...string) []tree.Item {
	out := make([]tree.Item, len(paths))
	for i, p := range paths {
		out[i] = tree.Item{Path: p}
	}
	return out
}

func TestScoreFormula(t *testing.T) {
	cases := map[string]int{
		"README.md":             10 + 5 + 2,      // readme, .md
		"src/main.rs":           9 + 5 + 2,       // main, .rs
		"config/app.config.yml": 9 + 5 + 5 + 2,   // config, app, .yml
		"a/b/c/logo.png":        7,               // nothing
		"setup.env":             10 + 5 + 5 + 2,  // setup, env, .env
		"src/index.ts":          9 + 5 + 2,       // index, .ts
	}
	for p, want := range cases {
		assert.Equal(t, want, Score(p), p)
	}
}

func TestSelectKeyFilesStableAndBounded(t *testing.T) {
	flat := []tree.Item{
		{Path: "src", IsDir: true},
		{Path: "src/b.rs"},
		{Path: "src/a.rs"},
		{Path: "README.md"},
		{Path: "src/main.rs"},
	}
	got := SelectKeyFiles(flat, 3)
	require.Equal(t, []string{"README.md", "src/main.rs", "src/b.rs"}, got)

	require.Empty(t, SelectKeyFiles(flat, 0))
	require.Len(t, SelectKeyFiles(flat, 100), 4)
}

func TestSelectKeyFilesPropertyRandom(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	words := []string{"main", "util", "config", "lib", "app", "x", "index"}
	exts := []string{".go", ".rs", ".png", ".md", ".bin", ""}
	for round := 0; round < 50; round++ {
		var flat []tree.Item
		n := r.Intn(40)
		for i := 0; i < n; i++ {
			p := ""
			for d := r.Intn(4); d > 0; d-- {
				p += words[r.Intn(len(words))] + "/"
			}
			p += fmt.Sprintf("%s%d%s", words[r.Intn(len(words))], i, exts[r.Intn(len(exts))])
			flat = append(flat, tree.Item{Path: p})
		}
		maxCount := r.Intn(10)
		got := SelectKeyFiles(flat, maxCount)
		require.LessOrEqual(t, len(got), maxCount)

		index := make(map[string]int, len(flat))
		for i, it := range flat {
			index[it.Path] = i
		}
		for i := 1; i < len(got); i++ {
			prev, cur := Score(got[i-1]), Score(got[i])
			require.GreaterOrEqual(t, prev, cur, "not descending")
			if prev == cur {
				require.Less(t, index[got[i-1]], index[got[i]], "tie broke pre-order")
			}
		}
	}
}

func TestIsTextLike(t *testing.T) {
	assert.True(t, IsTextLike("src/main.go"))
	assert.True(t, IsTextLike("Cargo.lock"))
	assert.True(t, IsTextLike(".env"))
	assert.True(t, IsTextLike("README.MD"))
	assert.False(t, IsTextLike("logo.png"))
	assert.False(t, IsTextLike("Makefile"))
}

func TestSelectorFiltersBeforeScoring(t *testing.T) {
	s := New()
	flat := files(
		"node_modules/react/index.js",
		"assets/logo.png",
		"src/app.ts",
		"README.md",
	)
	require.Equal(t, []string{"README.md", "src/app.ts"}, s.Select(flat, 8))
}

func TestSelectorHonoursProjectGitignore(t *testing.T) {
	s := New()
	s.AddGitignore("# generated\ngen/\n*.secret.json\n")
	flat := files("gen/api.go", "keys.secret.json", "main.go")
	require.Equal(t, []string{"main.go"}, s.Select(flat, 8))
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "Go", Language("cmd/main.go", []byte("package main\n")))
	assert.Equal(t, "Unknown", Language("blob.unknownext", []byte{0x00, 0x01}))
}
