package main

import (
	"context"
	"fmt"
	"os"

	"github.com/loomhq/loom/pkg/cmd"
	"github.com/loomhq/loom/pkg/log"
	"github.com/loomhq/loom/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a workflow document without running it",
		ArgsUsage: "<workflow.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("validate")

			path := command.Args().First()
			if path == "" {
				return fmt.Errorf("usage: loom validate <workflow.json>")
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			wf, err := workflow.Parse(data)
			if err != nil {
				return err
			}

			reg := cmd.NewRegistry(ctx, logger, "")

			if err := workflow.Validate(ctx, wf, reg); err != nil {
				return err
			}

			fmt.Printf("%s is valid (%d nodes, %d connections)\n", path, len(wf.Nodes), len(wf.Connections))

			return nil
		},
	}
}
