// Package main provides the loom robot agent: it consumes run assignments
// from the orchestrator and executes them locally.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/loomhq/loom/pkg/cmd"
	"github.com/loomhq/loom/pkg/dispatch"
	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/log"
	"github.com/loomhq/loom/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("robot")

	command := &cli.Command{
		Name:                  "loom-robot",
		Usage:                 "Start a robot agent that executes dispatched runs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "robot-id",
				Aliases: []string{"id"},
				Usage:   "Custom robot ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ROBOT_ID"),
			},
			&cli.IntFlag{
				Name:    "capacity",
				Usage:   "Maximum concurrent assignments",
				Value:   4,
				Sources: cli.EnvVars("ROBOT_CAPACITY"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing node plugins",
				Value:   "",
				Sources: cli.EnvVars("PLUGINS_PATH"),
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

			robotID := command.String("robot-id")
			if robotID == "" {
				robotID = fmt.Sprintf("robot-%s", uuid.New().String()[:8])
			}

			logger.InfoContext(ctx, "Initializing loom robot", "robot_id", robotID)

			reg := cmd.NewRegistry(ctx, logger, command.String("plugins-path"))
			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			provider := command.String("event-bus")

			eventBus := cmd.NewEventBus(provider, logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			assignments := cmd.NewEventBusOnTopic(provider, events.DispatchTopic, logger)
			status := cmd.NewEventBusOnTopic(provider, events.RobotStatusTopic, logger)

			eng := engine.New(logger, engine.WithEventBus(eventBus))
			repo := workflow.NewRepository(persistence)

			agent := dispatch.NewAgent(
				robotID,
				command.Int("capacity"),
				logger,
				eng,
				repo,
				reg,
				assignments,
				status,
			)

			if err := agent.Start(ctx); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			logger.InfoContext(ctx, "Shutting down robot", "robot_id", robotID)

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
}
