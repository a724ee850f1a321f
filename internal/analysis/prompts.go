package analysis

import (
	"fmt"
	"strings"
)

func purposePrompt(path, content string) string {
	return fmt.Sprintf(`Here is the file %q from a software project:

---
%s
---

Explain in 2-4 sentences what this file is responsible for, its main components, and how it fits into the project. Output only the explanation.`, path, content)
}

func dependencyPrompt(path, content string) string {
	return fmt.Sprintf(`Here is the file %q from a software project:

---
%s
---

List the external libraries, packages, or services this file depends on, one name per line. If it has none, reply with "none". Output only the list.`, path, content)
}

func summaryPrompt(path, content string) string {
	return fmt.Sprintf("Here is the file `%s` from a software project:\n\n---\n%s\n---\n\n"+
		"Summarize in 1-2 sentences, directly and explicitly, what this file does and how it fits into the project. "+
		"Do not use meta language, markdown formatting, or explanations. Output only the summary.", path, content)
}

// ParseDependencies turns a one-per-line reply into an ordered, deduplicated
// list. List markers and backticks are stripped; "none" and "n/a" yield
// nothing.
func ParseDependencies(text string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		name := strings.TrimSpace(line)
		name = strings.TrimLeft(name, "-*•+ \t")
		name = trimNumbering(name)
		name = strings.Trim(name, "`\"' \t")
		name = strings.TrimRight(name, ".,;")
		if name == "" {
			continue
		}
		switch strings.ToLower(name) {
		case "none", "n/a", "na", "no dependencies", "no external dependencies":
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// trimNumbering drops "1." or "2)" prefixes.
func trimNumbering(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(s) || (s[i] != '.' && s[i] != ')') {
		return s
	}
	return strings.TrimSpace(s[i+1:])
}
