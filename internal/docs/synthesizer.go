package docs

import (
	"context"
	"path"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"summeriq/internal/analysis"
	"summeriq/internal/budget"
	"summeriq/internal/logging"
	"summeriq/internal/metrics"
	"summeriq/internal/selector"
	"summeriq/internal/tree"
)

type Options struct {
	KeyFiles    int
	Mode        Mode
	Concurrency int
	ListingCap  int // characters of tree listing sent in the structure prompt
	FinalCap    int // characters of the final prompt's summary section

	Selector *selector.Selector
	Observer Observer
	Logger   *zap.Logger
	Now      func() time.Time
}

type Synthesizer struct {
	llm   analysis.Completer
	cache *analysis.Cache
	opts  Options
	log   *zap.Logger
}

// New builds a Synthesizer. A nil cache gets a private one with default
// settings.
func New(llm analysis.Completer, cache *analysis.Cache, opts Options) *Synthesizer {
	if cache == nil {
		cache = analysis.New(llm, analysis.DefaultConfig())
	}
	if opts.KeyFiles <= 0 {
		opts.KeyFiles = DefaultKeyFiles
	}
	if opts.Mode == "" {
		opts.Mode = ModeSummary
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ListingCap <= 0 {
		opts.ListingCap = DefaultListingCap
	}
	if opts.FinalCap <= 0 {
		opts.FinalCap = DefaultFinalCap
	}
	if opts.Selector == nil {
		opts.Selector = selector.New()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Synthesizer{llm: llm, cache: cache, opts: opts, log: logging.OrNop(opts.Logger)}
}

// Synthesize runs the three stages in order. Provider and per-file read
// failures degrade the document; only cancellation is returned as an error.
func (s *Synthesizer) Synthesize(ctx context.Context, p Project, r Reader) (*FinalDocument, error) {
	log := s.log.With(zap.String("project", p.Name))
	doc := &FinalDocument{ProjectName: p.Name, FileAnalyses: []FileAnalysis{}}
	flat := tree.Flatten(p.Nodes)

	s.emit(Event{Kind: StageStarted, Stage: StageStructure})
	arch, err := s.llm.Complete(ctx, structurePrompt(s.listing(p.Nodes)))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("structure overview failed", zap.Error(err))
		arch, doc.Degraded = "", true
	}
	doc.Architecture = arch
	s.emit(Event{Kind: StageFinished, Stage: StageStructure, Failed: err != nil})

	s.emit(Event{Kind: StageStarted, Stage: StageFiles})
	files, err := s.describeFiles(ctx, flat, r)
	if err != nil {
		return nil, err
	}
	doc.FileAnalyses = files
	s.emit(Event{Kind: StageFinished, Stage: StageFiles, Done: len(files), Total: len(files)})

	lists := [][]string{s.manifestDependencies(ctx, flat, r)}
	for _, f := range files {
		lists = append(lists, f.Dependencies)
	}
	doc.Dependencies = mergeDependencies(lists...)

	if readme := findReadme(flat); readme != "" {
		if raw, err := r.Read(ctx, readme); err == nil {
			doc.SetupInstructions = SetupInstructions(string(raw))
		} else {
			log.Debug("readme skipped", zap.String("path", readme), zap.Error(err))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.emit(Event{Kind: StageStarted, Stage: StageFinal})
	prompt, omitted := s.finalSummaries(arch, files)
	doc.Omitted = omitted
	body, err := s.llm.Complete(ctx, finalPrompt(prompt))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("final synthesis failed", zap.Error(err))
		body, doc.Degraded = NoDocumentation, true
	}
	doc.Description = body
	s.emit(Event{Kind: StageFinished, Stage: StageFinal, Failed: err != nil})

	doc.GeneratedAt = s.opts.Now().UTC()
	metrics.RecordDocument(doc.Degraded)
	log.Info("documentation generated",
		zap.Int("files", len(files)),
		zap.Int("omitted", len(omitted)),
		zap.Bool("degraded", doc.Degraded),
	)
	return doc, nil
}

func (s *Synthesizer) listing(nodes []*tree.FileNode) string {
	listing := tree.Render(nodes)
	if len(listing) <= s.opts.ListingCap {
		return listing
	}
	return budget.Truncate(listing, s.opts.ListingCap) + "\n--- Listing truncated due to size limits. ---\n"
}

// describeFiles summarizes the selected key files with bounded concurrency.
// Results keep selection order.
func (s *Synthesizer) describeFiles(ctx context.Context, flat []tree.Item, r Reader) ([]FileAnalysis, error) {
	keys := s.opts.Selector.Select(flat, s.opts.KeyFiles)
	out := make([]FileAnalysis, len(keys))

	var done atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, p := range keys {
		g.Go(func() error {
			var (
				fa     FileAnalysis
				failed bool
			)
			if raw, err := r.Read(gctx, p); err != nil {
				s.log.Debug("key file unreadable", zap.String("path", p), zap.Error(err))
				fa, failed = unreadable(p), true
			} else {
				fa, failed = s.describe(gctx, p, raw)
			}
			out[i] = fa
			s.emit(Event{Kind: FileDone, Stage: StageFiles, Path: p, Done: int(done.Add(1)), Total: len(keys), Failed: failed})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Synthesizer) describe(ctx context.Context, p string, raw []byte) (FileAnalysis, bool) {
	content := budget.Truncate(string(raw), budget.PolicySummary)
	fa := FileAnalysis{
		Path:          p,
		Name:          path.Base(p),
		Language:      selector.Language(p, raw),
		Dependencies:  []string{},
		Relationships: []string{},
	}
	if IsManifest(p) {
		if deps, err := ParseManifest(p, raw); err == nil {
			fa.Dependencies = deps
		}
	}

	var err error
	switch s.opts.Mode {
	case ModeAnalysis:
		var rec *analysis.Record
		if rec, err = s.cache.Analyze(ctx, p, content); err == nil {
			fa.Description = rec.Purpose
			fa.Language = rec.Language
			fa.Dependencies = mergeDependencies(fa.Dependencies, rec.Dependencies)
		}
	default:
		fa.Description, err = s.cache.Summarize(ctx, p, content)
	}
	if err != nil {
		s.log.Debug("file summary failed", zap.String("path", p), zap.Error(err))
		fa.Description = placeholder(p)
		return fa, true
	}
	return fa, false
}

func unreadable(p string) FileAnalysis {
	return FileAnalysis{
		Path:          p,
		Name:          path.Base(p),
		Language:      selector.Language(p, nil),
		Description:   placeholder(p),
		Dependencies:  []string{},
		Relationships: []string{},
	}
}

func (s *Synthesizer) manifestDependencies(ctx context.Context, flat []tree.Item, r Reader) []string {
	var lists [][]string
	for _, p := range findManifests(flat, s.opts.Selector) {
		raw, err := r.Read(ctx, p)
		if err != nil {
			s.log.Debug("manifest unreadable", zap.String("path", p), zap.Error(err))
			continue
		}
		deps, err := ParseManifest(p, raw)
		if err != nil {
			s.log.Debug("manifest skipped", zap.String("path", p), zap.Error(err))
			continue
		}
		lists = append(lists, deps)
	}
	return mergeDependencies(lists...)
}

// finalSummaries builds the summary section of the final prompt and
// returns the paths left out by the budget.
func (s *Synthesizer) finalSummaries(arch string, files []FileAnalysis) (string, []string) {
	header := "## Project structure\n" + arch + "\n\n## Key files\n"
	cands := make([]budget.Candidate, len(files))
	for i, f := range files {
		cands[i] = budget.Candidate{Path: f.Path, Content: f.Description}
	}
	asm := budget.Budgeter{
		PerFileCap: -1,
		Cap:        s.opts.FinalCap,
		Reserved:   len(header),
		Format:     budget.SectionFormat,
		Summary:    omittedNote,
	}.Assemble(cands)
	return header + asm.Text, asm.Omitted
}

func (s *Synthesizer) emit(e Event) { s.opts.Observer.Observe(e) }
