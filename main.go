package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/internal/commands"
	"github.com/colonyops/resumepilot/internal/core/config"
	"github.com/colonyops/resumepilot/internal/core/logging"
	"github.com/colonyops/resumepilot/internal/core/styles"
	"github.com/colonyops/resumepilot/internal/data/db"
	"github.com/colonyops/resumepilot/internal/data/stores"
	"github.com/colonyops/resumepilot/internal/printer"
	"github.com/colonyops/resumepilot/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

// openDatabase opens the local store, moving a corrupt file aside and
// retrying once.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	opts := db.DefaultOpenOptions()
	opts.BusyTimeout = cfg.Database.BusyTimeout
	opts.MaxOpenConns = cfg.Database.MaxOpenConns

	database, err := db.Open(cfg.DataDir, opts)
	if err == nil || !stores.IsCorruptionError(err) {
		return database, err
	}

	backup, rerr := stores.RecoverFromCorruption(cfg.DataDir)
	if rerr != nil {
		return nil, fmt.Errorf("recover database: %w", rerr)
	}
	log.Warn().Str("backup", backup).Msg("local store was corrupt; starting fresh")
	return db.Open(cfg.DataDir, opts)
}

func main() {
	// A .env file is optional; RESUMEPILOT_* variables may come from it.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx = printer.NewContext(ctx, printer.New(os.Stderr))

	var (
		logCloser    = func() {}
		stopProfiler = func() {}
		rpApp        = &app.App{}
		database     *db.DB
	)

	flags := &commands.Flags{}

	root := commands.NewRoot(flags)
	root.Version = build()

	root.Before = func(ctx context.Context, c *cli.Command) (context.Context, error) {
		cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
		if err != nil {
			return ctx, fmt.Errorf("load config: %w", err)
		}
		if flags.APIURL != "" {
			cfg.API.BaseURL = flags.APIURL
			if err := cfg.Validate(); err != nil {
				return ctx, fmt.Errorf("invalid --api-url: %w", err)
			}
		}
		flags.Config = cfg

		logFile := flags.LogFile
		if logFile == "" {
			logFile = cfg.LogFile()
		}

		logger, closer, err := logutils.New(flags.LogLevel, logFile)
		if err != nil {
			return ctx, fmt.Errorf("setup logger: %w", err)
		}
		log.Logger = logger.Hook(logging.ContextHook{})
		logCloser = closer

		// Validation ensures the theme name is known
		palette, _ := styles.GetPalette(cfg.Render.Theme)
		styles.SetTheme(palette)

		database, err = openDatabase(cfg)
		if err != nil {
			return ctx, fmt.Errorf("open database: %w", err)
		}

		// Populate the pre-allocated App struct (commands already hold a pointer to it)
		*rpApp = *app.New(cfg, database, os.Stderr)

		if n, err := rpApp.KV.SweepExpired(ctx); err != nil {
			log.Warn().Err(err).Msg("initial kv sweep failed")
		} else if n > 0 {
			log.Debug().Int64("removed", n).Msg("kv sweep")
		}

		stopProfiler, err = commands.StartProfiler(ctx, flags)
		if err != nil {
			return ctx, err
		}

		return ctx, nil
	}

	root.After = func(ctx context.Context, c *cli.Command) error {
		stopProfiler()

		if database != nil {
			if err := database.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close database")
				return err
			}
		}

		logCloser()
		return nil
	}

	root = commands.Register(root, flags, rpApp)

	exitCode := 0
	if err := root.Run(ctx, os.Args); err != nil {
		if msg := err.Error(); msg != "" {
			printer.Ctx(ctx).Errorf("%s", msg)
		}
		exitCode = 1
	}

	stop()
	os.Exit(exitCode)
}
