package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"summeriq/cmd/summeriq/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "path to an env file",
		Value: ".env",
	}
	providerFlags := []cli.Flag{
		envFlag,
		&cli.StringFlag{
			Name:  "provider",
			Usage: "text service provider (openrouter, openai, gemini, fake); overrides LLM_PROVIDER",
		},
		&cli.StringFlag{
			Name:  "model",
			Usage: "model name; overrides LLM_MODEL",
		},
	}

	app := &cli.Command{
		Name:  "summeriq",
		Usage: "turn a source archive into project documentation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "warn",
			},
		},
		Before: commands.SetupLogging,
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "unpack a zip archive safely into a directory",
				ArgsUsage: "<archive.zip>",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:     "out",
						Usage:    "destination directory",
						Required: true,
					},
				},
				Action: commands.ExtractAction,
			},
			{
				Name:      "tree",
				Usage:     "print the ordered file tree of a directory or archive",
				ArgsUsage: "<dir|archive.zip>",
				Flags: []cli.Flag{
					envFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the tree as JSON",
					},
					&cli.IntFlag{
						Name:  "key-files",
						Usage: "also list the N highest scoring files",
					},
				},
				Action: commands.TreeAction,
			},
			{
				Name:      "document",
				Usage:     "generate documentation for a directory or archive",
				ArgsUsage: "<dir|archive.zip>",
				Flags: append(append([]cli.Flag{}, providerFlags...),
					&cli.StringFlag{
						Name:  "mode",
						Usage: "per-file prompt: summary or analysis; overrides DOC_MODE",
					},
					&cli.IntFlag{
						Name:  "key-files",
						Usage: "number of key files; overrides DOC_KEY_FILES",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "output format: markdown or json",
						Value: "markdown",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "write to this file instead of stdout",
					},
				),
				Action: commands.DocumentAction,
			},
			{
				Name:      "analyze",
				Usage:     "analyze one file of a directory",
				ArgsUsage: "<dir> <path>",
				Flags:     providerFlags,
				Action:    commands.AnalyzeAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
