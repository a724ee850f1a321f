// Package sanitize strips model reasoning artifacts from completions.
package sanitize

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules drive Clean. Matching is case-insensitive.
type Rules struct {
	// Blocks are tag names whose <tag>...</tag> spans are removed, even
	// when they cross lines.
	Blocks []string `yaml:"blocks"`
	// Prefixes drop a line that starts with any of them.
	Prefixes []string `yaml:"prefixes"`
	// Contains drop a line that mentions any of them.
	Contains []string `yaml:"contains"`
}

func DefaultRules() Rules {
	return Rules{
		Blocks: []string{"think", "thinking", "reasoning", "analysis"},
		Prefixes: []string{
			"Alright,", "Alright.", "Okay,", "Okay.", "Ok,", "Let me", "Let's", "I need to",
			"I should", "I will now", "I'll start", "Hmm", "First, I", "Now, I", "Wait,",
		},
		Contains: []string{
			"as an ai language model",
			"the user wants",
			"the user is asking",
			"the user asked",
			"my reasoning",
			"thinking process",
			"here is my analysis of the prompt",
		},
	}
}

// LoadRules reads a YAML rule file. Keys left out keep their defaults.
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read sanitize rules: %w", err)
	}
	return ParseRules(raw)
}

func ParseRules(raw []byte) (Rules, error) {
	var in Rules
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return Rules{}, fmt.Errorf("parse sanitize rules: %w", err)
	}
	r := DefaultRules()
	if in.Blocks != nil {
		r.Blocks = in.Blocks
	}
	if in.Prefixes != nil {
		r.Prefixes = in.Prefixes
	}
	if in.Contains != nil {
		r.Contains = in.Contains
	}
	return r, nil
}

type Sanitizer struct {
	blocks   []*regexp.Regexp
	markers  []*regexp.Regexp
	prefixes []string
	contains []string
}

func New(r Rules) *Sanitizer {
	s := &Sanitizer{}
	for _, tag := range r.Blocks {
		q := regexp.QuoteMeta(strings.TrimSpace(tag))
		if q == "" {
			continue
		}
		s.blocks = append(s.blocks, regexp.MustCompile(`(?is)<`+q+`>.*?</`+q+`>`))
		s.markers = append(s.markers, regexp.MustCompile(`(?i)^</?`+q+`>$`))
	}
	for _, p := range r.Prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			s.prefixes = append(s.prefixes, p)
		}
	}
	for _, c := range r.Contains {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			s.contains = append(s.contains, c)
		}
	}
	return s
}

// Default is a Sanitizer over DefaultRules.
func Default() *Sanitizer { return New(DefaultRules()) }

// Clean removes bracketed blocks, drops matching lines, trims the rest,
// drops empty lines and joins what remains with "\n".
func (s *Sanitizer) Clean(text string) string {
	for _, re := range s.blocks {
		text = re.ReplaceAllString(text, "")
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || s.drop(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func (s *Sanitizer) drop(line string) bool {
	for _, re := range s.markers {
		if re.MatchString(line) {
			return true
		}
	}
	lower := strings.ToLower(line)
	for _, p := range s.prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, c := range s.contains {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}
