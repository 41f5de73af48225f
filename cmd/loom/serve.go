package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/loomhq/loom/pkg/cmd"
	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/log"
	"github.com/loomhq/loom/pkg/otelhelper"
	"github.com/loomhq/loom/pkg/trigger"
	"github.com/loomhq/loom/pkg/triggers/webhook"
	"github.com/loomhq/loom/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

// NewServeCommand runs the trigger-driven engine: every stored workflow's
// triggers are started and fire local runs.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start triggers for stored workflows and execute runs locally",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "loom.yaml",
				Sources: cli.EnvVars("LOOM_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := config.Load(command.String("config"))
			if err != nil {
				return err
			}

			logLevel := command.String("log-level")
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}

			log.Setup(logLevel)
			logger := log.WithModule("serve")

			logger.InfoContext(ctx, "Initializing loom engine service")

			reg := cmd.NewRegistry(ctx, logger, cfg.PluginsPath)
			persistence := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL)

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(cfg.EventBus, logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			opts := []engine.Option{
				engine.WithEventBus(eventBus),
				engine.WithWorkerPool(cfg.Engine.WorkerPoolSize),
			}

			if cfg.Tracing.Enabled {
				tracer, err := otelhelper.NewTracer(ctx, cfg.Tracing.ServiceName)
				if err != nil {
					return err
				}

				opts = append(opts, engine.WithTracer(tracer))
			}

			eng := engine.New(logger, opts...)
			repo := workflow.NewRepository(persistence)

			// Shared server for webhook triggers.
			webhook.GetServerManager(cfg.Webhook.Port, logger)

			callback := func(ctx context.Context, workflowID string, initialVariables map[string]any) error {
				wf, err := repo.FetchByID(ctx, workflowID)
				if err != nil {
					return err
				}

				graph, err := workflow.Compile(ctx, wf, reg)
				if err != nil {
					return err
				}

				handle, err := eng.Start(ctx, graph, initialVariables)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "run started", "workflow_id", workflowID, "run_id", handle.ID())

				return nil
			}

			manager := trigger.NewManager(logger, reg, callback)

			workflows, err := repo.FetchAll(ctx)
			if err != nil {
				return err
			}

			for _, wf := range workflows {
				if err := manager.StartWorkflow(ctx, wf); err != nil {
					logger.ErrorContext(ctx, "Failed to start triggers", "workflow_id", wf.ID, "error", err)
				}
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			logger.InfoContext(ctx, "Shutting down")
			manager.StopAll(ctx)

			if sm := webhook.GetGlobalServerManager(); sm != nil {
				if err := sm.Stop(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to stop webhook server", "error", err)
				}
			}

			return nil
		},
	}
}
