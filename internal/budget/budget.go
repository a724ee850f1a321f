// Package budget decides how much file content fits in a prompt.
package budget

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Per-file byte caps.
const (
	PolicySummary  = 1000
	PolicyDetailed = 10240
)

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n < 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ContentBudget counts consumed characters against Cap. Used only grows.
type ContentBudget struct {
	Cap  int
	Used int
}

// Fits reports whether n more characters stay strictly under Cap.
func (b *ContentBudget) Fits(n int) bool { return b.Used+n < b.Cap }

// Consume takes n characters if they fit.
func (b *ContentBudget) Consume(n int) bool {
	if n < 0 || !b.Fits(n) {
		return false
	}
	b.Used += n
	return true
}

func (b *ContentBudget) Remaining() int { return b.Cap - b.Used }

// Candidate is one (path, content) pair offered to the budgeter.
type Candidate struct {
	Path    string
	Content string
}

// Format renders one included candidate.
type Format func(path, content string) string

// BlockFormat is the default "--- path ---" framing.
func BlockFormat(path, content string) string {
	return "--- " + path + " ---\n" + content + "\n\n"
}

// SectionFormat frames a candidate as a markdown section.
func SectionFormat(path, content string) string {
	return "## `" + path + "`\n" + content + "\n\n"
}

// Summary renders the omission note.
type Summary func(omitted []string, listLimit int) string

// DefaultSummary lists up to listLimit of the omitted paths.
func DefaultSummary(omitted []string, listLimit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n--- %d file(s) omitted due to size limits", len(omitted))
	if listLimit > 0 {
		shown := omitted
		if len(shown) > listLimit {
			shown = shown[:listLimit]
		}
		fmt.Fprintf(&b, ": %s", strings.Join(shown, ", "))
		if len(omitted) > len(shown) {
			fmt.Fprintf(&b, ", and %d more", len(omitted)-len(shown))
		}
	}
	b.WriteString(" ---\n")
	return b.String()
}

// Budgeter assembles candidates first-fit in the order given.
type Budgeter struct {
	PerFileCap   int // bytes; negative disables truncation
	Cap          int // cumulative characters
	Reserved     int // characters already spent by the caller, e.g. a header
	Format       Format
	Summary      Summary
	SummaryLimit int
}

// Assembly is the result of one Assemble pass.
type Assembly struct {
	Text     string
	Included []string
	Omitted  []string
	Used     int
}

// Assemble truncates every candidate to PerFileCap, then appends its block
// while the running total stays under Cap. Candidates that do not fit are
// recorded in Omitted and the pass continues.
func (b Budgeter) Assemble(cands []Candidate) Assembly {
	format := b.Format
	if format == nil {
		format = BlockFormat
	}
	summary := b.Summary
	if summary == nil {
		summary = DefaultSummary
	}
	cb := ContentBudget{Cap: b.Cap, Used: b.Reserved}

	var (
		out Assembly
		sb  strings.Builder
	)
	for _, c := range cands {
		block := format(c.Path, Truncate(c.Content, b.PerFileCap))
		if !cb.Consume(len(block)) {
			out.Omitted = append(out.Omitted, c.Path)
			continue
		}
		sb.WriteString(block)
		out.Included = append(out.Included, c.Path)
	}
	out.Used = cb.Used - b.Reserved
	if len(out.Omitted) > 0 {
		sb.WriteString(summary(out.Omitted, b.SummaryLimit))
	}
	out.Text = sb.String()
	return out
}
