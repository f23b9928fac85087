// Command promptdex runs the prompt search engine: HTTP API, MCP server and maintenance jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "promptdex:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "promptdex",
		Usage: "hybrid search and ranking engine for a prompt library",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "config environment (config/<env>.yaml)",
				Sources: cli.EnvVars("ENV"),
				Value:   "local",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before the config",
				Value: ".env",
			},
		},
		Before: loadDotEnv,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serveAction,
			},
			{
				Name:  "mcp",
				Usage: "serve search tools over MCP stdio",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "user-id",
						Usage:   "principal for every tool call; empty means public prompts only",
						Sources: cli.EnvVars("PROMPTDEX_USER_ID"),
					},
					&cli.StringFlag{
						Name:    "workspace-id",
						Usage:   "workspace of the principal",
						Sources: cli.EnvVars("PROMPTDEX_WORKSPACE_ID"),
					},
				},
				Action: mcpAction,
			},
			{
				Name:  "backfill",
				Usage: "embed items that have no vector for the configured model",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "only count missing vectors",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "override backfill.workers",
					},
				},
				Action: backfillAction,
			},
			{
				Name:   "migrate",
				Usage:  "create indexes and tables",
				Action: migrateAction,
			},
			{
				Name:   "version",
				Usage:  "print build information",
				Action: versionAction,
			},
		},
	}
}
