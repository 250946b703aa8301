package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/internal/core/logging"
	"github.com/colonyops/resumepilot/internal/core/task"
	"github.com/colonyops/resumepilot/internal/core/validate"
	"github.com/colonyops/resumepilot/internal/printer"
	"github.com/colonyops/resumepilot/internal/resume"
	"github.com/colonyops/resumepilot/internal/stream"
	"github.com/colonyops/resumepilot/pkg/iojson"
)

type OptimizeCmd struct {
	flags *Flags
	app   *app.App

	// flags
	resumeID string
	job      string
	stream   bool
	format   string
	jobFile  *iojson.TextReader
}

// NewOptimizeCmd creates a new optimize command
func NewOptimizeCmd(flags *Flags, a *app.App) *OptimizeCmd {
	return &OptimizeCmd{
		flags:   flags,
		app:     a,
		jobFile: iojson.NewTextReader("job-file", "path to a file with the job description"),
	}
}

// Register adds the optimize command to the application
func (cmd *OptimizeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "optimize",
		Usage:     "Tailor an analyzed résumé to a job description",
		UsageText: "resumepilot optimize [--resume-id id] (--job text | --job-file path | < job.txt) [--stream] [--format fmt]",
		Description: `Asks the backend for suggestions that fit the résumé to a job description.
The suggestion text is split into advantages, weaknesses, and improvements.

Without --resume-id the résumé of the last completed analysis is used.
With --stream progress is shown while the backend works and the suggestion
arrives incrementally.

Formats: terminal (default), markdown, html, json.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "resume-id",
				Aliases:     []string{"r"},
				Usage:       "analyzed résumé to optimize",
				Destination: &cmd.resumeID,
			},
			&cli.StringFlag{
				Name:        "job",
				Aliases:     []string{"j"},
				Usage:       "job description text",
				Destination: &cmd.job,
			},
			cmd.jobFile.Flag(),
			&cli.BoolFlag{
				Name:        "stream",
				Aliases:     []string{"s"},
				Usage:       "receive the suggestion over the push stream",
				Destination: &cmd.stream,
			},
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "output format (terminal, markdown, html, json)",
				Value:       FormatTerminal,
				Destination: &cmd.format,
			},
		},
		Action: withView(cmd.app, cmd.run),
	})

	return app
}

func (cmd *OptimizeCmd) run(ctx context.Context, c *cli.Command) error {
	if err := checkFormat(cmd.format, suggestionFormats); err != nil {
		return err
	}
	if err := requireAuth(ctx, cmd.app); err != nil {
		return err
	}

	resumeID, err := resolveResumeID(ctx, cmd.app, cmd.resumeID)
	if err != nil {
		return err
	}

	job := strings.TrimSpace(cmd.job)
	if job == "" {
		job, err = cmd.jobFile.Read()
		if err != nil {
			return fmt.Errorf("read job description: %w", err)
		}
	}

	if err := validate.RequiredField("job", job); err != nil {
		return fmt.Errorf("job description: %w", err)
	}

	req := resume.OptimizeRequest{
		UserID:         currentUserID(ctx, cmd.app),
		ResumeID:       resumeID,
		JobDescription: job,
	}

	var (
		text        string
		optimizedID int64
	)
	if cmd.stream {
		text, err = cmd.runStream(ctx, req)
	} else {
		text, optimizedID, err = cmd.runBlocking(ctx, req)
	}
	if err != nil {
		return err
	}

	sections := cmd.app.Parser.Parse(text)
	return writeSuggestion(c.Root().Writer, cmd.format, cmd.app.Config, text, sections, optimizedID)
}

func (cmd *OptimizeCmd) runBlocking(ctx context.Context, req resume.OptimizeRequest) (string, int64, error) {
	p := printer.Ctx(ctx)
	p.Infof("Optimizing résumé %s...", req.ResumeID)

	result, err := cmd.app.Resumes.RequestOptimization(ctx, req)
	if err != nil {
		return "", 0, err
	}

	if result.OptimizedResumeID != 0 {
		if err := cmd.app.Workspace.SetCurrentOptimized(ctx, result.OptimizedResumeID); err != nil {
			p.Warnf("could not remember optimized résumé: %v", err)
		}
		p.Successf("Optimized résumé %d (download with 'resumepilot download')", result.OptimizedResumeID)
	}
	return result.SuggestionText, result.OptimizedResumeID, nil
}

func (cmd *OptimizeCmd) runStream(ctx context.Context, req resume.OptimizeRequest) (string, error) {
	p := printer.Ctx(ctx)

	var (
		chunks strings.Builder
		result string
		failed error
	)

	sink := stream.Funcs{
		Progress: func(ev task.StreamEvent) {
			if pct, ok := ev.Percent(); ok {
				p.Printf("%s", progressLine(task.Task{Progress: pct, Status: task.StatusProcessing}))
				return
			}
			p.Infof("%s", ev.Payload)
		},
		Chunk: func(ev task.StreamEvent) {
			chunks.WriteString(ev.Payload)
		},
		Result: func(ev task.StreamEvent) {
			result = suggestionFromPayload(ev.Payload, chunks.String())
		},
		Error: func(err error) {
			failed = err
		},
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go app.StartSweep(sweepCtx, cmd.app.KV, app.SweepInterval)

	sub, err := cmd.app.Stream.Open(logging.WithResumeID(ctx, parseResumeID(req.ResumeID)), req, sink)
	if err != nil {
		return "", err
	}
	stop := watchHangup(sub)
	defer stop()

	<-sub.Done()
	log.Debug().Str("resume_id", req.ResumeID).Str("state", sub.State().String()).Msg("stream finished")

	switch {
	case failed != nil:
		return "", failed
	case ctx.Err() != nil:
		return "", ctx.Err()
	case sub.Err() != nil:
		return "", sub.Err()
	}

	p.Successf("Optimization finished")
	return result, nil
}

// suggestionFromPayload extracts the suggestion text from a result frame.
// A JSON object result carries it under suggestionText; an empty result
// falls back to the accumulated chunks.
func suggestionFromPayload(payload, chunks string) string {
	payload = strings.TrimSpace(payload)
	if gjson.Valid(payload) {
		if v := gjson.Get(payload, "suggestionText"); v.Exists() {
			return v.String()
		}
	}
	if payload == "" {
		return chunks
	}
	return payload
}

func parseResumeID(id string) int64 {
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}
