package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"summeriq/internal/docs"
	"summeriq/internal/logging"
	"summeriq/internal/selector"
	"summeriq/internal/tree"
)

// DocumentAction runs the three documentation stages over a directory or
// archive and prints the result.
func DocumentAction(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if format != "markdown" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	deps, cfg, err := buildDeps(ctx, cmd)
	if err != nil {
		return err
	}
	defer deps.Close()

	src, err := openSource(ctx, cmd.Args().First(), cfg.Extract)
	if err != nil {
		return err
	}
	res, err := tree.Build(ctx, src.store, "", cfg.Tree)
	if err != nil {
		return err
	}
	mode, ok := docs.ParseMode(cfg.Docs.Mode)
	if !ok {
		return fmt.Errorf("unknown mode %q", cfg.Docs.Mode)
	}

	sel := selector.New()
	if raw, err := src.store.Read(ctx, ".gitignore"); err == nil {
		sel.AddGitignore(string(raw))
	}
	log := logging.Named("document")
	syn := docs.New(deps.LLM, deps.Cache, docs.Options{
		KeyFiles:    cfg.Docs.KeyFiles,
		Mode:        mode,
		Concurrency: cfg.Docs.Concurrency,
		Selector:    sel,
		Logger:      log,
		Observer: docs.ObserverFunc(func(e docs.Event) {
			switch e.Kind {
			case docs.StageStarted:
				log.Info("stage started", zap.String("stage", string(e.Stage)))
			case docs.FileDone:
				log.Info("file done", zap.String("path", e.Path), zap.Int("done", e.Done), zap.Int("total", e.Total), zap.Bool("failed", e.Failed))
			}
		}),
	})
	doc, err := syn.Synthesize(ctx, docs.Project{Name: src.name, Nodes: res.Nodes}, src.store)
	if err != nil {
		return err
	}
	if doc.Degraded {
		log.Warn("documentation is degraded")
	}

	var body []byte
	if format == "json" {
		if body, err = json.MarshalIndent(doc, "", "  "); err != nil {
			return err
		}
		body = append(body, '\n')
	} else {
		body = []byte(docs.Markdown(doc))
	}
	return writeOutput(cmd.String("output"), body)
}
