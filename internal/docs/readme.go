package docs

import (
	"path"
	"strings"

	"summeriq/internal/budget"
	"summeriq/internal/selector"
	"summeriq/internal/tree"
)

var setupHeadings = []string{"setup", "installation", "install", "getting started", "quick start"}

// findReadme returns the shallowest README* file in flat, or "".
func findReadme(flat []tree.Item) string {
	best, bestDepth := "", -1
	for _, it := range flat {
		if it.IsDir || !strings.HasPrefix(strings.ToLower(path.Base(it.Path)), "readme") {
			continue
		}
		if d := selector.Depth(it.Path); bestDepth < 0 || d < bestDepth {
			best, bestDepth = it.Path, d
		}
	}
	return best
}

// SetupInstructions returns the body of the first setup-like section of a
// markdown README, or the whole README capped at PolicyDetailed when there
// is none.
func SetupInstructions(readme string) string {
	if s, ok := markdownSection(readme, setupHeadings); ok {
		return s
	}
	return strings.TrimSpace(budget.Truncate(readme, budget.PolicyDetailed))
}

// markdownSection collects the lines under the first ATX heading whose
// title contains one of titles, up to the next heading of the same or a
// higher level. Fenced code blocks are not scanned for headings.
func markdownSection(content string, titles []string) (string, bool) {
	var (
		section []string
		level   int
		inside  bool
		fenced  bool
	)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fenced = !fenced
		}
		if !fenced {
			if lvl, title, ok := heading(trimmed); ok {
				if inside && lvl <= level {
					break
				}
				if !inside && containsAny(strings.ToLower(title), titles) {
					inside, level = true, lvl
					continue
				}
			}
		}
		if inside {
			section = append(section, strings.TrimRight(line, "\r"))
		}
	}
	out := strings.TrimSpace(strings.Join(section, "\n"))
	return out, inside && out != ""
}

func heading(line string) (level int, title string, ok bool) {
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(line[level:]), true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
