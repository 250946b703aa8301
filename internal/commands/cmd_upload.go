package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/internal/core/logging"
	"github.com/colonyops/resumepilot/internal/core/task"
	"github.com/colonyops/resumepilot/internal/printer"
	"github.com/colonyops/resumepilot/internal/resume"
	"github.com/colonyops/resumepilot/pkg/iojson"
)

type UploadCmd struct {
	flags *Flags
	app   *app.App

	// flags
	wait       bool
	jsonOutput bool
}

// NewUploadCmd creates a new upload command
func NewUploadCmd(flags *Flags, a *app.App) *UploadCmd {
	return &UploadCmd{flags: flags, app: a}
}

// Register adds the upload command to the application
func (cmd *UploadCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "upload",
		Usage:     "Submit a résumé for analysis",
		UsageText: "resumepilot upload <file> [--wait] [--json]",
		Description: `Uploads a résumé file and prints the analysis task id. The task becomes
the current task, so 'resumepilot status' can be run without arguments.

With --wait the command polls until the analysis finishes and remembers the
resulting résumé id for 'resumepilot optimize'.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "wait",
				Aliases:     []string{"w"},
				Usage:       "poll until the analysis completes",
				Destination: &cmd.wait,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the final task as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: withView(cmd.app, cmd.run),
	})

	return app
}

func (cmd *UploadCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("missing résumé file; usage: %s", c.UsageText)
	}
	if err := requireAuth(ctx, cmd.app); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open résumé: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := cmd.app.Resumes.Submit(ctx, resume.Document{
		FileName: filepath.Base(path),
		Content:  f,
		UserID:   currentUserID(ctx, cmd.app),
	})
	if err != nil {
		return err
	}

	ctx = logging.WithTaskID(ctx, t.TaskID)
	if err := cmd.app.Workspace.SetCurrentTask(ctx, t.TaskID); err != nil {
		p.Warnf("could not remember task: %v", err)
	}
	cmd.app.Tracker.Observe(t)

	if !cmd.jsonOutput {
		p.Successf("Uploaded %s (task %s)", filepath.Base(path), t.TaskID)
	}

	if cmd.wait {
		t, err = waitForTask(ctx, cmd.app, t.TaskID, !cmd.jsonOutput)
		if err != nil {
			return err
		}
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, t)
	}
	if cmd.wait {
		printTask(p, t)
	}
	return nil
}

// waitForTask polls taskID to a terminal state, printing each accepted
// snapshot when verbose is set.
func waitForTask(ctx context.Context, a *app.App, taskID string, verbose bool) (task.Task, error) {
	p := printer.Ctx(ctx)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go app.StartSweep(sweepCtx, a.KV, app.SweepInterval)

	t, err := a.Poller.Wait(ctx, taskID, func(t task.Task) {
		if verbose {
			p.Printf("%s", progressLine(t))
		}
	})
	if err != nil {
		return t, err
	}

	a.Tracker.Forget(taskID)
	rememberCompleted(ctx, a, t)
	return t, nil
}
