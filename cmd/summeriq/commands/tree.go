package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"summeriq/internal/selector"
	"summeriq/internal/tree"
)

// TreeAction prints the ordered tree, optionally followed by the key files.
func TreeAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	src, err := openSource(ctx, cmd.Args().First(), cfg.Extract)
	if err != nil {
		return err
	}
	res, err := tree.Build(ctx, src.store, "", cfg.Tree)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out, err := json.MarshalIndent(res.Nodes, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput("", append(out, '\n'))
	}

	fmt.Print(tree.Render(res.Nodes))
	if res.Truncated {
		fmt.Printf("(truncated at %d nodes)\n", res.Count)
	}
	if n := cmd.Int("key-files"); n > 0 {
		sel := selector.New()
		if raw, err := src.store.Read(ctx, ".gitignore"); err == nil {
			sel.AddGitignore(string(raw))
		}
		fmt.Println("\nkey files:")
		for _, p := range sel.Select(tree.Flatten(res.Nodes), n) {
			fmt.Println("  " + p)
		}
	}
	return nil
}
