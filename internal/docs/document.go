// Package docs turns an extracted project into a FinalDocument in three
// ordered stages: structure overview, per-file summaries, final synthesis.
package docs

import (
	"context"
	"time"

	"summeriq/internal/tree"
)

const (
	// NoDocumentation replaces the body when the final stage fails.
	NoDocumentation = "No documentation available."

	DefaultKeyFiles    = 8
	DefaultConcurrency = 4
	DefaultListingCap  = 20_000
	DefaultFinalCap    = 10_000
	MaxManifests       = 16
)

// Reader reads one file of the project by its tree path.
type Reader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, path string) ([]byte, error)

func (f ReaderFunc) Read(ctx context.Context, path string) ([]byte, error) { return f(ctx, path) }

type Project struct {
	Name  string
	Nodes []*tree.FileNode
}

type FileAnalysis struct {
	Path          string   `json:"path"`
	Name          string   `json:"name"`
	Language      string   `json:"language"`
	Description   string   `json:"description"`
	Dependencies  []string `json:"dependencies"`
	Relationships []string `json:"relationships"`
}

type FinalDocument struct {
	ProjectName       string         `json:"project_name"`
	Description       string         `json:"description"`
	Architecture      string         `json:"architecture"`
	FileAnalyses      []FileAnalysis `json:"file_analyses"`
	Dependencies      []string       `json:"dependencies"`
	SetupInstructions string         `json:"setup_instructions"`
	// Omitted lists key files whose summaries did not fit the final prompt.
	Omitted     []string  `json:"omitted,omitempty"`
	Degraded    bool      `json:"degraded"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Mode picks the per-file prompt.
type Mode string

const (
	ModeSummary  Mode = "summary"
	ModeAnalysis Mode = "analysis"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeSummary:
		return ModeSummary, true
	case ModeAnalysis:
		return ModeAnalysis, true
	}
	return "", false
}
