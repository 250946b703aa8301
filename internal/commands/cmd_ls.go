package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/internal/resume"
	"github.com/colonyops/resumepilot/pkg/iojson"
)

type LsCmd struct {
	flags *Flags
	app   *app.App

	// flags
	jsonOutput bool
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags, a *app.App) *LsCmd {
	return &LsCmd{flags: flags, app: a}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List your résumés",
		UsageText: "resumepilot ls [--json]",
		Description: `Displays a table of the résumés stored for your account. The current
résumé (used by optimize and embed) is marked with '*'.

Use --json for one JSON object per line, including the backend's raw record.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: withView(cmd.app, cmd.run),
	})

	return app
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireAuth(ctx, cmd.app); err != nil {
		return err
	}

	items, err := cmd.app.Resumes.List(ctx)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		if !cmd.jsonOutput {
			fmt.Fprintf(os.Stderr, "No résumés found\n")
		}
		return nil
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		lw := iojson.NewLineWriter(out)
		for _, item := range items {
			if err := lw.Write(item); err != nil {
				return fmt.Errorf("encode résumé: %w", err)
			}
		}
		return nil
	}

	current, _, _ := cmd.app.Workspace.CurrentResume(ctx)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, " \tID\tFILE\tSTATUS\tCREATED")
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			marker(item, current),
			item.ResumeID,
			firstNonEmpty(item.OriginalFileName, item.FileName, "-"),
			firstNonEmpty(item.Status, "-"),
			firstNonEmpty(item.CreatedAt, "-"),
		)
	}
	return w.Flush()
}

func marker(item resume.Summary, current string) string {
	if current != "" && item.ResumeID == current {
		return "*"
	}
	return " "
}
