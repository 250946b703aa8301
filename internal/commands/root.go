package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/pkg/profiler"
)

// NewRoot returns the root command with the global flags bound to flags.
// Subcommands are added by Register.
func NewRoot(flags *Flags) *cli.Command {
	return &cli.Command{
		Name:      "resumepilot",
		Usage:     "Analyze and tailor résumés from the terminal",
		UsageText: "resumepilot [global options] command [command options]",
		Description: `resumepilot uploads résumés for analysis, tracks analysis progress, and
asks the backend to tailor an analyzed résumé to a job description.

Run 'resumepilot login' first, then 'resumepilot upload resume.pdf --wait'
and 'resumepilot optimize --job-file job.txt'.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("RESUMEPILOT_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/resumepilot.log)",
				Sources:     cli.EnvVars("RESUMEPILOT_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("RESUMEPILOT_CONFIG"),
				Value:       DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("RESUMEPILOT_DATA_DIR"),
				Value:       DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.StringFlag{
				Name:        "api-url",
				Usage:       "backend base URL (overrides api.base_url)",
				Sources:     cli.EnvVars("RESUMEPILOT_API_URL"),
				Destination: &flags.APIURL,
			},
			&cli.IntFlag{
				Name:        "profiler-port",
				Usage:       "serve pprof on 127.0.0.1:<port> while the command runs (0 disables)",
				Sources:     cli.EnvVars("RESUMEPILOT_PROFILER_PORT"),
				Destination: &flags.ProfilerPort,
			},
		},
	}
}

// Register adds every subcommand to root.
func Register(root *cli.Command, flags *Flags, a *app.App) *cli.Command {
	root = NewAuthCmd(flags, a).Register(root)
	root = NewUploadCmd(flags, a).Register(root)
	root = NewStatusCmd(flags, a).Register(root)
	root = NewOptimizeCmd(flags, a).Register(root)
	root = NewEmbedCmd(flags, a).Register(root)
	root = NewDownloadCmd(flags, a).Register(root)
	root = NewLsCmd(flags, a).Register(root)
	root = NewParseCmd(flags, a).Register(root)
	root = NewDoctorCmd(flags, a).Register(root)
	root = NewConfigValidateCmd(flags).Register(root)
	return root
}

// StartProfiler starts the pprof server when flags.ProfilerPort is positive.
// The returned func shuts it down.
func StartProfiler(ctx context.Context, flags *Flags) (func(), error) {
	if flags.ProfilerPort <= 0 {
		return func() {}, nil
	}

	srv := profiler.New(flags.ProfilerPort, log.Logger)
	if err := srv.Start(ctx); err != nil {
		return func() {}, fmt.Errorf("start profiler: %w", err)
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown profiler server")
		}
	}, nil
}
