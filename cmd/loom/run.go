package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/loomhq/loom/pkg/cmd"
	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/log"
	"github.com/loomhq/loom/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a workflow document locally and print the result",
		ArgsUsage: "<workflow.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "vars",
				Usage:   "Initial variables as a JSON object",
				Value:   "",
				Sources: cli.EnvVars("LOOM_VARS"),
			},
			&cli.IntFlag{
				Name:    "worker-pool",
				Usage:   "Maximum concurrent node executions",
				Value:   engine.DefaultWorkerPoolSize,
				Sources: cli.EnvVars("LOOM_WORKER_POOL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("run")

			path := command.Args().First()
			if path == "" {
				return fmt.Errorf("usage: loom run <workflow.json>")
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			wf, err := workflow.Parse(data)
			if err != nil {
				return err
			}

			var initialVariables map[string]any
			if vars := command.String("vars"); vars != "" {
				if err := json.Unmarshal([]byte(vars), &initialVariables); err != nil {
					return fmt.Errorf("invalid --vars: %w", err)
				}
			}

			reg := cmd.NewRegistry(ctx, logger, "")

			graph, err := workflow.Compile(ctx, wf, reg)
			if err != nil {
				return err
			}

			eng := engine.New(logger, engine.WithWorkerPool(command.Int("worker-pool")))

			result, err := eng.Run(ctx, graph, initialVariables)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(out))

			if result.Status != engine.StatusCompleted {
				return fmt.Errorf("run finished with status %s", result.Status)
			}

			return nil
		},
	}
}
