package commands

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/internal/core/logging"
	"github.com/colonyops/resumepilot/internal/printer"
	"github.com/colonyops/resumepilot/pkg/iojson"
)

type StatusCmd struct {
	flags *Flags
	app   *app.App

	// flags
	watch      bool
	jsonOutput bool
}

// NewStatusCmd creates a new status command
func NewStatusCmd(flags *Flags, a *app.App) *StatusCmd {
	return &StatusCmd{flags: flags, app: a}
}

// Register adds the status command to the application
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show the state of an analysis task",
		UsageText: "resumepilot status [task-id] [--watch] [--json]",
		Description: `Fetches one snapshot of an analysis task. Without a task id the task of
the last upload is used. --watch keeps polling with back-off until the task
completes or fails.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "watch",
				Aliases:     []string{"w"},
				Usage:       "poll until the task is finished",
				Destination: &cmd.watch,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: withView(cmd.app, cmd.run),
	})

	return app
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if err := requireAuth(ctx, cmd.app); err != nil {
		return err
	}

	taskID, err := resolveTaskID(ctx, cmd.app, c.Args().First())
	if err != nil {
		return err
	}
	ctx = logging.WithTaskID(ctx, taskID)

	t, err := cmd.app.Resumes.FetchStatus(ctx, taskID)
	if err != nil {
		return err
	}
	t, _ = cmd.app.Tracker.Observe(t)

	if cmd.watch && !t.Status.IsTerminal() {
		t, err = waitForTask(ctx, cmd.app, taskID, !cmd.jsonOutput)
		if err != nil {
			return err
		}
	} else {
		rememberCompleted(ctx, cmd.app, t)
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, t)
	}
	printTask(p, t)
	return nil
}
