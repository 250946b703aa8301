package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/internal/printer"
	"github.com/colonyops/resumepilot/internal/resume"
)

type DownloadCmd struct {
	flags *Flags
	app   *app.App

	// flags
	id       int64
	fileType string
	output   string
}

// NewDownloadCmd creates a new download command
func NewDownloadCmd(flags *Flags, a *app.App) *DownloadCmd {
	return &DownloadCmd{flags: flags, app: a}
}

// Register adds the download command to the application
func (cmd *DownloadCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "download",
		Usage:     "Download an optimized résumé",
		UsageText: "resumepilot download [--id n] [--type pdf] [-o path]",
		Description: `Generates the optimized résumé in the requested format and writes it to
disk. Without --id the result of the last 'resumepilot optimize' is used.
Use -o - to write to stdout.`,
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "id",
				Usage:       "optimized résumé id",
				Destination: &cmd.id,
			},
			&cli.StringFlag{
				Name:        "type",
				Aliases:     []string{"t"},
				Usage:       "file type passed to the backend (for example pdf or docx)",
				Value:       "pdf",
				Destination: &cmd.fileType,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output path (defaults to the name suggested by the backend)",
				Destination: &cmd.output,
			},
		},
		Action: withView(cmd.app, cmd.run),
	})

	return app
}

func (cmd *DownloadCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if err := requireAuth(ctx, cmd.app); err != nil {
		return err
	}

	id := cmd.id
	if id == 0 {
		cur, ok, err := cmd.app.Workspace.CurrentOptimized(ctx)
		if err != nil {
			return err
		}
		if !ok || cur == 0 {
			return fmt.Errorf("no optimized résumé; pass --id or run 'resumepilot optimize' first")
		}
		id = cur
	}

	blob, err := cmd.app.Resumes.GenerateOptimizedFile(ctx, resume.DownloadRequest{
		UserID:            currentUserID(ctx, cmd.app),
		OptimizedResumeID: id,
		FileType:          cmd.fileType,
	})
	if err != nil {
		return err
	}

	if cmd.output == "-" {
		_, err := c.Root().Writer.Write(blob.Data)
		return err
	}

	path := cmd.output
	if path == "" {
		path = filepath.Base(blob.FileName)
	}
	if err := os.WriteFile(path, blob.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	p.Successf("Saved optimized résumé %d to %s (%d bytes)", id, path, len(blob.Data))
	return nil
}
