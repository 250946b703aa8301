package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/pkg/iojson"
)

type ParseCmd struct {
	flags *Flags
	app   *app.App

	// flags
	format string
	input  *iojson.TextReader
}

// NewParseCmd creates a new parse command
func NewParseCmd(flags *Flags, a *app.App) *ParseCmd {
	return &ParseCmd{
		flags: flags,
		app:   a,
		input: iojson.NewTextReader("file", "path to suggestion text"),
	}
}

// Register adds the parse command to the application
func (cmd *ParseCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "parse",
		Usage:     "Split suggestion text into sections offline",
		UsageText: "resumepilot parse [--file path] [--format fmt] < suggestion.txt",
		Description: `Runs the suggestion parser on saved text without contacting the backend.
Section markers are read from the suggestions config.

Formats: terminal (default), markdown, html, json.`,
		Flags: []cli.Flag{
			cmd.input.Flag(),
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "output format (terminal, markdown, html, json)",
				Value:       FormatTerminal,
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ParseCmd) run(_ context.Context, c *cli.Command) error {
	if err := checkFormat(cmd.format, suggestionFormats); err != nil {
		return err
	}

	text, err := cmd.input.Read()
	if err != nil {
		return fmt.Errorf("read suggestion: %w", err)
	}

	sections := cmd.app.Parser.Parse(text)
	return writeSuggestion(c.Root().Writer, cmd.format, cmd.app.Config, text, sections, 0)
}
