package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"summeriq/internal/archive"
	"summeriq/internal/logging"
)

// ExtractAction unpacks an archive into --out.
func ExtractAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	src := cmd.Args().First()
	if src == "" {
		return fmt.Errorf("an archive path is required")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	written, err := archive.ExtractToDir(ctx, data, cmd.String("out"),
		archive.WithLimits(cfg.Extract),
		archive.WithLogger(logging.Named("archive")),
	)
	if err != nil {
		return err
	}
	fmt.Printf("extracted %d files into %s\n", len(written), cmd.String("out"))
	return nil
}
