package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/internal/printer"
)

type EmbedCmd struct {
	flags *Flags
	app   *app.App
}

// NewEmbedCmd creates a new embed command
func NewEmbedCmd(flags *Flags, a *app.App) *EmbedCmd {
	return &EmbedCmd{flags: flags, app: a}
}

// Register adds the embed command to the application
func (cmd *EmbedCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "embed",
		Usage:       "Index an analyzed résumé for retrieval",
		UsageText:   "resumepilot embed [resume-id]",
		Description: "Stores the résumé's embedding on the backend. Defaults to the résumé of the last completed analysis.",
		Action:      withView(cmd.app, cmd.run),
	})

	return app
}

func (cmd *EmbedCmd) run(ctx context.Context, c *cli.Command) error {
	if err := requireAuth(ctx, cmd.app); err != nil {
		return err
	}

	resumeID, err := resolveResumeID(ctx, cmd.app, c.Args().First())
	if err != nil {
		return err
	}

	if err := cmd.app.Resumes.StoreEmbedding(ctx, resumeID); err != nil {
		return err
	}

	printer.Ctx(ctx).Successf("Embedding stored for résumé %s", resumeID)
	return nil
}
