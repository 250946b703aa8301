package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/internal/core/doctor"
	"github.com/colonyops/resumepilot/internal/core/styles"
	"github.com/colonyops/resumepilot/pkg/iojson"
)

type DoctorCmd struct {
	flags   *Flags
	app     *app.App
	format  string
	autofix bool
}

func NewDoctorCmd(flags *Flags, a *app.App) *DoctorCmd {
	return &DoctorCmd{flags: flags, app: a}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your resumepilot setup",
		UsageText:   "resumepilot doctor [options]",
		Description: "Runs diagnostic checks on configuration, the local store, the stored session, and backend reachability.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "autofix",
				Usage:       "automatically fix issues (e.g., sweep expired cache entries)",
				Destination: &cmd.autofix,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	if err := checkFormat(cmd.format, []string{"text", FormatJSON}); err != nil {
		return err
	}

	checks := cmd.app.DoctorChecks(cmd.flags.ConfigPath)
	results := doctor.RunAll(ctx, checks, doctor.Options{AutoFix: cmd.autofix})

	if cmd.format == FormatJSON {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(os.Stderr, results)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	passed, warned, failed := doctor.Summary(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary summaryJSON     `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: failed == 0,
		Summary: summaryJSON{Passed: passed, Warned: warned, Failed: failed},
		Checks:  results,
	}

	if err := iojson.WriteWith(c.Root().Writer, os.Stderr, out); err != nil {
		return err
	}
	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

type summaryJSON struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

func (cmd *DoctorCmd) outputText(w io.Writer, results []doctor.Result) error {
	divider := styles.TextMutedStyle.Render(strings.Repeat("─", 40))

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.TextPrimaryBoldStyle.Render("Resumepilot Doctor"))
	_, _ = fmt.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w)

	for _, result := range results {
		_, _ = fmt.Fprintln(w, styles.TextForegroundBoldStyle.Render(result.Name))

		for _, item := range result.Items {
			var detail string
			if item.Detail != "" {
				detail = " " + styles.TextMutedStyle.Render(item.Detail)
			}

			var icon string
			switch item.Status {
			case doctor.StatusPass:
				icon = styles.TextSuccessStyle.Render("✔")
			case doctor.StatusWarn:
				icon = styles.TextWarningStyle.Render("●")
			case doctor.StatusFail:
				icon = styles.TextErrorStyle.Render("✘")
			}

			_, _ = fmt.Fprintf(w, "  %s %s%s\n", icon, item.Label, detail)
		}

		_, _ = fmt.Fprintln(w)
	}

	passed, warned, failed := doctor.Summary(results)
	summary := fmt.Sprintf("%s  %s  %s",
		styles.TextSuccessStyle.Render(fmt.Sprintf("%d passed", passed)),
		styles.TextWarningStyle.Render(fmt.Sprintf("%d warnings", warned)),
		styles.TextErrorStyle.Render(fmt.Sprintf("%d failed", failed)),
	)
	_, _ = fmt.Fprintln(w, summary)

	if !cmd.autofix {
		if fixable := doctor.CountFixable(results); fixable > 0 {
			_, _ = fmt.Fprintln(w)
			hint := styles.TextMutedStyle.Render(fmt.Sprintf("Run 'resumepilot doctor --autofix' to fix %d issue(s)", fixable))
			_, _ = fmt.Fprintln(w, hint)
		}
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}

	return nil
}
