package selector

import (
	"strings"

	"github.com/go-enry/go-enry/v2"
	gitignore "github.com/sabhiram/go-gitignore"

	"summeriq/internal/tree"
)

// DefaultIgnorePatterns are dropped before scoring.
var DefaultIgnorePatterns = []string{
	".git/",
	".hg/",
	".svn/",
	"node_modules/",
	"vendor/",
	"target/",
	"build/",
	"dist/",
	".next/",
	".cache/",
	"__pycache__/",
	".venv/",
	"*.min.js",
	"*.map",
	".DS_Store",
}

// Selector narrows a flattened tree to candidates before SelectKeyFiles
// runs. It never changes the score of a path it keeps.
type Selector struct {
	ignore       *gitignore.GitIgnore
	textOnly     bool
	skipVendored bool
}

type Option func(*Selector)

// WithIgnorePatterns adds gitignore-style patterns to the defaults.
func WithIgnorePatterns(patterns ...string) Option {
	return func(s *Selector) {
		lines := append(append([]string(nil), DefaultIgnorePatterns...), patterns...)
		s.ignore = gitignore.CompileIgnoreLines(lines...)
	}
}

// WithTextOnly drops paths IsTextLike rejects.
func WithTextOnly(on bool) Option { return func(s *Selector) { s.textOnly = on } }

// WithSkipVendored drops paths go-enry classifies as vendored or generated
// documentation assets.
func WithSkipVendored(on bool) Option { return func(s *Selector) { s.skipVendored = on } }

func New(opts ...Option) *Selector {
	s := &Selector{
		ignore:       gitignore.CompileIgnoreLines(DefaultIgnorePatterns...),
		textOnly:     true,
		skipVendored: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddGitignore merges the lines of a project's own .gitignore.
func (s *Selector) AddGitignore(content string) {
	lines := append([]string(nil), DefaultIgnorePatterns...)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	s.ignore = gitignore.CompileIgnoreLines(lines...)
}

// Ignored reports whether p is excluded by the ignore rules.
func (s *Selector) Ignored(p string) bool {
	return s.ignore != nil && s.ignore.MatchesPath(p)
}

// Candidates keeps the files of flat that pass every filter, in order.
func (s *Selector) Candidates(flat []tree.Item) []tree.Item {
	out := make([]tree.Item, 0, len(flat))
	for _, it := range flat {
		if it.IsDir || s.Ignored(it.Path) {
			continue
		}
		if s.textOnly && !IsTextLike(it.Path) {
			continue
		}
		if s.skipVendored && (enry.IsVendor(it.Path) || enry.IsDotFile(it.Path) && !IsTextLike(it.Path)) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Select filters flat and returns the top maxCount key files.
func (s *Selector) Select(flat []tree.Item, maxCount int) []string {
	return SelectKeyFiles(s.Candidates(flat), maxCount)
}

// Language guesses the language of a file from its name and content.
func Language(p string, content []byte) string {
	name := p
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		name = p[i+1:]
	}
	if lang := enry.GetLanguage(name, content); lang != "" {
		return lang
	}
	return "Unknown"
}
