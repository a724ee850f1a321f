// Package selector scores flattened paths and picks the files worth
// sending to the text service.
package selector

import (
	"path"
	"sort"
	"strings"

	"summeriq/internal/tree"
)

// DefaultKeyFiles is how many files the documentation pass reads.
const DefaultKeyFiles = 8

// Keywords each add 5 when they appear anywhere in the lowercased path.
var Keywords = []string{"main", "index", "config", "readme", "app", "setup", "env"}

// TextExtensions is the allow-list shared by IsTextLike and the
// extension term of Score.
var TextExtensions = []string{
	".rs", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".json", ".toml",
	".md", ".txt", ".yaml", ".yml", ".html", ".css", ".scss", ".env", ".lock", ".sql",
	".go", ".mod", ".sum", ".py", ".rb", ".java", ".kt", ".swift", ".c", ".h", ".cpp",
	".hpp", ".cs", ".php", ".sh", ".xml", ".ini", ".cfg", ".conf", ".proto", ".vue",
	".svelte", ".gradle", ".graphql",
}

var textExtSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(TextExtensions))
	for _, e := range TextExtensions {
		m[e] = struct{}{}
	}
	return m
}()

// ScoredPath is ephemeral; it lives for one selection call.
type ScoredPath struct {
	Path  string
	Score int
}

// Depth is the number of '/' separators in p.
func Depth(p string) int { return strings.Count(p, "/") }

// Score is (10 - depth) + 5 per keyword hit + 2 per matching extension.
func Score(p string) int {
	lower := strings.ToLower(p)
	s := 10 - Depth(p)
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			s += 5
		}
	}
	for _, ext := range TextExtensions {
		if strings.HasSuffix(lower, ext) {
			s += 2
		}
	}
	return s
}

// IsTextLike reports whether the extension of p is on the allow-list.
func IsTextLike(p string) bool {
	_, ok := textExtSet[strings.ToLower(path.Ext(p))]
	return ok
}

// SelectKeyFiles scores the files in flat, sorts by descending score
// keeping pre-order for ties, and returns at most maxCount paths.
func SelectKeyFiles(flat []tree.Item, maxCount int) []string {
	return top(ScoreAll(flat), maxCount)
}

// ScoreAll returns the scored files of flat in descending score order.
func ScoreAll(flat []tree.Item) []ScoredPath {
	scored := make([]ScoredPath, 0, len(flat))
	for _, it := range flat {
		if it.IsDir {
			continue
		}
		scored = append(scored, ScoredPath{Path: it.Path, Score: Score(it.Path)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

func top(scored []ScoredPath, maxCount int) []string {
	if maxCount < 0 {
		maxCount = 0
	}
	if len(scored) > maxCount {
		scored = scored[:maxCount]
	}
	out := make([]string, len(scored))
	for i, sp := range scored {
		out[i] = sp.Path
	}
	return out
}
