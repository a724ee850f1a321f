// Package project implements the operations exposed to callers: upload,
// listing, per-file analysis, documentation and questions.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"summeriq/internal/analysis"
	"summeriq/internal/archive"
	"summeriq/internal/budget"
	"summeriq/internal/bytestore"
	"summeriq/internal/docs"
	"summeriq/internal/events"
	"summeriq/internal/flight"
	"summeriq/internal/logging"
	"summeriq/internal/safeio"
	"summeriq/internal/selector"
	"summeriq/internal/tree"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNotText         = errors.New("file is not a text file")
	ErrInvalidPath     = errors.New("invalid file path")
)

const (
	askContextCap       = 24_000
	defaultDocCacheSize = 128
)

// Meta is stored next to the extracted files.
type Meta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	FileCount int       `json:"file_count"`
}

type Options struct {
	Extractor    *archive.Extractor
	TreeLimits   tree.Limits
	Docs         docs.Options // Selector, Observer and Logger are set per run
	DocCacheSize int
	Events       *events.Broadcaster
	Logger       *zap.Logger
	Now          func() time.Time
}

type Service struct {
	store bytestore.Store
	llm   analysis.Completer
	cache *analysis.Cache
	opts  Options
	log   *zap.Logger

	docCache  *lru.Cache[string, *docs.FinalDocument]
	docFlight singleflight.Group
}

func New(store bytestore.Store, llm analysis.Completer, cache *analysis.Cache, opts Options) (*Service, error) {
	if cache == nil {
		cache = analysis.New(llm, analysis.DefaultConfig())
	}
	if opts.Extractor == nil {
		opts.Extractor = archive.New(archive.WithLogger(opts.Logger))
	}
	if opts.TreeLimits == (tree.Limits{}) {
		opts.TreeLimits = tree.DefaultLimits()
	}
	if opts.DocCacheSize <= 0 {
		opts.DocCacheSize = defaultDocCacheSize
	}
	if opts.Events == nil {
		opts.Events = events.NewBroadcaster()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	docCache, err := lru.New[string, *docs.FinalDocument](opts.DocCacheSize)
	if err != nil {
		return nil, fmt.Errorf("project: doc cache: %w", err)
	}
	return &Service{
		store:    store,
		llm:      llm,
		cache:    cache,
		opts:     opts,
		log:      logging.OrNop(opts.Logger).Named("project"),
		docCache: docCache,
	}, nil
}

func (s *Service) Events() *events.Broadcaster { return s.opts.Events }

func projectPrefix(id string) string { return bytestore.JoinKey("projects", id) }
func filesPrefix(id string) string   { return bytestore.JoinKey("projects", id, "files") }
func metaKey(id string) string       { return bytestore.JoinKey("projects", id, "meta.json") }

func (s *Service) files(id string) bytestore.Store { return bytestore.Sub(s.store, filesPrefix(id)) }

// UploadAndExtract stores a new project from a zip payload. A failed upload
// leaves nothing behind.
func (s *Service) UploadAndExtract(ctx context.Context, name string, data []byte) (string, error) {
	id := uuid.NewString()
	if name == "" {
		name = "project-" + id[:8]
	}
	log := s.log.With(zap.String("project", id))

	if err := s.store.MakeDir(ctx, filesPrefix(id)); err != nil {
		return "", fmt.Errorf("project: create %s: %w", id, err)
	}
	written, err := s.opts.Extractor.Extract(ctx, data, s.files(id))
	if err != nil {
		s.discard(id)
		return "", err
	}

	meta := Meta{ID: id, Name: name, CreatedAt: s.opts.Now().UTC(), FileCount: len(written)}
	raw, err := json.Marshal(meta)
	if err != nil {
		s.discard(id)
		return "", fmt.Errorf("project: encode meta: %w", err)
	}
	if err := s.store.Write(ctx, metaKey(id), raw); err != nil {
		s.discard(id)
		return "", fmt.Errorf("project: write meta: %w", err)
	}

	log.Info("project uploaded", zap.String("name", name), zap.Int("files", len(written)))
	s.opts.Events.Publish(events.Event{Project: id, Type: events.EventUploaded, Total: len(written)})
	return id, nil
}

// discard removes a half-written project. It runs detached from the
// request context so a cancelled upload is still cleaned up.
func (s *Service) discard(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.store.RemoveAll(ctx, projectPrefix(id)); err != nil {
		s.log.Warn("cleanup failed", zap.String("project", id), zap.Error(err))
	}
}

// Meta returns the stored metadata of a project.
func (s *Service) Meta(ctx context.Context, id string) (*Meta, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	raw, err := s.store.Read(ctx, metaKey(id))
	if errors.Is(err, bytestore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("project: read meta: %w", err)
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("project: decode meta: %w", err)
	}
	return &m, nil
}

func (s *Service) ListTree(ctx context.Context, id string) ([]*tree.FileNode, error) {
	if _, err := s.Meta(ctx, id); err != nil {
		return nil, err
	}
	res, err := tree.Build(ctx, s.files(id), "", s.opts.TreeLimits)
	if err != nil {
		return nil, err
	}
	if res.Truncated {
		s.log.Warn("tree truncated", zap.String("project", id), zap.Int("nodes", res.Count))
	}
	return res.Nodes, nil
}

func (s *Service) ReadFile(ctx context.Context, id, p string) ([]byte, error) {
	if _, err := s.Meta(ctx, id); err != nil {
		return nil, err
	}
	rel, err := cleanFilePath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.files(id).Read(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("project: read %s: %w", rel, err)
	}
	return data, nil
}

func cleanFilePath(p string) (string, error) {
	rel, err := safeio.CleanRel(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return rel, nil
}

// AnalyzeFile analyzes one text file, truncated to the detailed policy.
func (s *Service) AnalyzeFile(ctx context.Context, id, p string) (*analysis.Record, error) {
	if _, err := s.Meta(ctx, id); err != nil {
		return nil, err
	}
	rel, err := cleanFilePath(p)
	if err != nil {
		return nil, err
	}
	if !selector.IsTextLike(rel) {
		return nil, fmt.Errorf("%w: %s", ErrNotText, rel)
	}
	data, err := s.ReadFile(ctx, id, rel)
	if err != nil {
		return nil, err
	}
	return s.cache.Analyze(ctx, rel, budget.Truncate(string(data), budget.PolicyDetailed))
}

const docFlightBound = 30 * time.Minute

// GetDocumentation synthesizes the project document. Complete documents are
// memoized per project; concurrent requests for one project share a run that
// keeps going when the caller that started it goes away.
func (s *Service) GetDocumentation(ctx context.Context, id string) (*docs.FinalDocument, error) {
	if doc, ok := s.docCache.Get(id); ok {
		return doc, nil
	}
	return flight.Do(ctx, &s.docFlight, id, docFlightBound, func(ctx context.Context) (*docs.FinalDocument, error) {
		return s.synthesize(ctx, id)
	})
}

func (s *Service) synthesize(ctx context.Context, id string) (*docs.FinalDocument, error) {
	meta, err := s.Meta(ctx, id)
	if err != nil {
		return nil, err
	}
	nodes, err := s.ListTree(ctx, id)
	if err != nil {
		return nil, err
	}
	files := s.files(id)

	opts := s.opts.Docs
	opts.Selector = s.selectorFor(ctx, files)
	opts.Logger = s.log
	opts.Observer = docs.ObserverFunc(func(e docs.Event) {
		s.opts.Events.Publish(events.Event{
			Project: id,
			Type:    string(e.Kind),
			Stage:   string(e.Stage),
			Path:    e.Path,
			Done:    e.Done,
			Total:   e.Total,
			Failed:  e.Failed,
		})
	})

	doc, err := docs.New(s.llm, s.cache, opts).Synthesize(ctx, docs.Project{Name: meta.Name, Nodes: nodes}, files)
	if err != nil {
		s.opts.Events.Publish(events.Event{Project: id, Type: events.EventFailed, Message: err.Error()})
		return nil, err
	}
	if !doc.Degraded {
		s.docCache.Add(id, doc)
	}
	s.opts.Events.Publish(events.Event{Project: id, Type: events.EventDocumentReady, Failed: doc.Degraded})
	return doc, nil
}

// selectorFor honours a root .gitignore when the project has one.
func (s *Service) selectorFor(ctx context.Context, files bytestore.Store) *selector.Selector {
	sel := selector.New()
	if raw, err := files.Read(ctx, ".gitignore"); err == nil {
		sel.AddGitignore(string(raw))
	}
	return sel
}

// Ask answers a question about the project. With a path the file is the
// context; otherwise the key files are.
func (s *Service) Ask(ctx context.Context, id, question, p string) (string, error) {
	meta, err := s.Meta(ctx, id)
	if err != nil {
		return "", err
	}
	files := s.files(id)

	var (
		cands    []budget.Candidate
		selected string
	)
	if p != "" {
		rel, err := cleanFilePath(p)
		if err != nil {
			return "", err
		}
		if !selector.IsTextLike(rel) {
			return "", fmt.Errorf("%w: %s", ErrNotText, rel)
		}
		data, err := files.Read(ctx, rel)
		if err != nil {
			return "", fmt.Errorf("project: read %s: %w", rel, err)
		}
		selected = rel
		cands = append(cands, budget.Candidate{Path: rel, Content: string(data)})
	} else {
		nodes, err := s.ListTree(ctx, id)
		if err != nil {
			return "", err
		}
		keyFiles := s.opts.Docs.KeyFiles
		if keyFiles <= 0 {
			keyFiles = docs.DefaultKeyFiles
		}
		for _, kp := range s.selectorFor(ctx, files).Select(tree.Flatten(nodes), keyFiles) {
			data, err := files.Read(ctx, kp)
			if err != nil {
				return "", fmt.Errorf("project: read %s: %w", kp, err)
			}
			cands = append(cands, budget.Candidate{Path: kp, Content: string(data)})
		}
	}

	asm := budget.Budgeter{
		PerFileCap:   budget.PolicyDetailed,
		Cap:          askContextCap,
		SummaryLimit: 5,
	}.Assemble(cands)
	return s.llm.Complete(ctx, askPrompt(meta.Name, selected, question, asm.Text))
}

// DeleteProject removes the project and forgets its document.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.Meta(ctx, id); err != nil {
		return err
	}
	s.docCache.Remove(id)
	if err := s.store.RemoveAll(ctx, projectPrefix(id)); err != nil {
		return fmt.Errorf("project: delete %s: %w", id, err)
	}
	return nil
}

func askPrompt(project, file, question, material string) string {
	if file != "" {
		return fmt.Sprintf("You are an assistant helping with the %q project. The user is viewing the file %q located at %q.\n\n"+
			"File content:\n%s\nQuestion: %s\n\n"+
			"Give a helpful, detailed answer about this file or the project. Explain the code, architecture and relevant best practices. Be direct and factual.",
			project, path.Base(file), file, material, question)
	}
	return fmt.Sprintf("You are an assistant helping with the %q project.\n\n"+
		"Key files:\n%s\nQuestion: %s\n\n"+
		"Give a helpful, detailed answer about this project. If the question is about one file, suggest selecting it for a closer look. Be direct and factual.",
		project, material, question)
}
