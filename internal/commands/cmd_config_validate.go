package commands

import (
	"context"
	"errors"
	"os"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/core/config"
	"github.com/colonyops/resumepilot/internal/printer"
	"github.com/colonyops/resumepilot/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "resumepilot config validate [options]",
				Description: "Validates the configuration file, checking the backend URL, poll intervals, section markers, and render style.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

// validationError is one failed field.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []validationError          `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	result := validateConfig(cmd.flags.Config, cmd.flags.ConfigPath)

	if cmd.format == FormatJSON {
		if err := iojson.WriteWith(c.Root().Writer, os.Stderr, result); err != nil {
			return err
		}
		if !result.Valid {
			return cli.Exit("", 1)
		}
		return nil
	}

	return cmd.outputText(printer.Ctx(ctx), result)
}

func validateConfig(cfg *config.Config, configPath string) validationResult {
	result := validationResult{Valid: true, Warnings: cfg.Warnings()}

	err := cfg.ValidateDeep(configPath)
	if err == nil {
		return result
	}

	result.Valid = false
	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			result.Errors = append(result.Errors, validationError{Field: fe.Field, Message: fe.Err.Error()})
		}
		return result
	}
	result.Errors = append(result.Errors, validationError{Field: "config", Message: err.Error()})
	return result
}

func (cmd *ConfigValidateCmd) outputText(p *printer.Printer, result validationResult) error {
	for _, warn := range result.Warnings {
		p.Warnf("%s: %s", warn.Category, warn.Message)
		if warn.Item != "" {
			p.Printf("  Item: %s", warn.Item)
		}
	}

	for _, e := range result.Errors {
		p.Errorf("%s: %s", e.Field, e.Message)
	}

	p.Printf("")
	if result.Valid {
		p.Successf("Configuration is valid")
		return nil
	}

	p.Errorf("%d error(s) found", len(result.Errors))
	return cli.Exit("", 1)
}
