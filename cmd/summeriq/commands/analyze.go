package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"summeriq/internal/budget"
	"summeriq/internal/safeio"
	"summeriq/internal/selector"
)

// AnalyzeAction prints the analysis record of one file as JSON.
func AnalyzeAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: analyze <dir> <path>")
	}
	rel, err := safeio.CleanRel(cmd.Args().Get(1))
	if err != nil || rel == "" {
		return fmt.Errorf("invalid path %q", cmd.Args().Get(1))
	}
	if !selector.IsTextLike(rel) {
		return fmt.Errorf("%s is not a text file", rel)
	}

	deps, cfg, err := buildDeps(ctx, cmd)
	if err != nil {
		return err
	}
	defer deps.Close()

	src, err := openSource(ctx, cmd.Args().Get(0), cfg.Extract)
	if err != nil {
		return err
	}
	data, err := src.store.Read(ctx, rel)
	if err != nil {
		return fmt.Errorf("read %s: %w", rel, err)
	}
	rec, err := deps.Cache.Analyze(ctx, rel, budget.Truncate(string(data), budget.PolicyDetailed))
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput("", append(out, '\n'))
}
