package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/resumepilot/internal/api"
	"github.com/colonyops/resumepilot/internal/app"
	"github.com/colonyops/resumepilot/internal/core/config"
	"github.com/colonyops/resumepilot/internal/core/session"
	"github.com/colonyops/resumepilot/internal/core/styles"
	"github.com/colonyops/resumepilot/internal/core/suggest"
	"github.com/colonyops/resumepilot/internal/core/task"
	"github.com/colonyops/resumepilot/internal/printer"
	"github.com/colonyops/resumepilot/internal/resume"
	"github.com/colonyops/resumepilot/internal/stream"
	"github.com/colonyops/resumepilot/pkg/iojson"
)

// Output formats for suggestion text.
const (
	FormatTerminal = "terminal"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatJSON     = "json"
)

var suggestionFormats = []string{FormatTerminal, FormatMarkdown, FormatHTML, FormatJSON}

var errNoCurrentResume = errors.New("no current résumé; pass --resume-id or wait for an upload to complete")

// withView records the running command as the navigator's current view
// before running fn.
func withView(a *app.App, fn cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if a.Navigator != nil {
			a.Navigator.SetView(c.Name)
		}
		return fn(ctx, c)
	}
}

// requireAuth fails fast when no credential is stored.
func requireAuth(ctx context.Context, a *app.App) error {
	if a.Session.IsAuthenticated() {
		return nil
	}
	_ = a.Navigator.Navigate(ctx, session.ViewLogin)
	return &api.AuthorizationError{Message: "not logged in"}
}

// currentUserID returns the numeric id of the logged-in user, fetching the
// profile once if it is not cached. Zero means unknown.
func currentUserID(ctx context.Context, a *app.App) int64 {
	u, ok := a.Session.User()
	if !ok {
		u, ok = a.Auth.FetchUserInfo(ctx)
	}
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(string(u.ID), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func resolveTaskID(ctx context.Context, a *app.App, arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	id, ok, err := a.Workspace.CurrentTask(ctx)
	if err != nil {
		return "", err
	}
	if !ok || id == "" {
		return "", resume.ErrNoCurrentTask
	}
	return id, nil
}

func resolveResumeID(ctx context.Context, a *app.App, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	id, ok, err := a.Workspace.CurrentResume(ctx)
	if err != nil {
		return "", err
	}
	if !ok || id == "" {
		return "", errNoCurrentResume
	}
	return id, nil
}

func checkFormat(format string, allowed []string) error {
	if slices.Contains(allowed, format) {
		return nil
	}
	return fmt.Errorf("unknown format %q (expected one of %s)", format, strings.Join(allowed, ", "))
}

// newRenderer builds the terminal markdown renderer from render config.
func newRenderer(cfg config.RenderConfig) (*glamour.TermRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(cfg.WordWrap)}
	switch cfg.Style {
	case "":
		opts = append(opts, glamour.WithStyles(styles.GlamourStyle()))
	case config.AutoStyle:
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStylePath(cfg.Style))
	}
	return glamour.NewTermRenderer(opts...)
}

// suggestionOutput is the JSON form of a parsed suggestion.
type suggestionOutput struct {
	Sections          suggest.Sections `json:"sections"`
	SuggestionText    string           `json:"suggestionText"`
	OptimizedResumeID int64            `json:"optimizedResumeId,omitempty"`
}

// writeSuggestion renders parsed suggestion text in format. When no marker
// was found the raw text is rendered instead of empty sections.
func writeSuggestion(w io.Writer, format string, cfg *config.Config, text string, sections suggest.Sections, optimizedID int64) error {
	if format == FormatJSON {
		return iojson.WriteWith(w, os.Stderr, suggestionOutput{
			Sections:          sections,
			SuggestionText:    text,
			OptimizedResumeID: optimizedID,
		})
	}

	body := text
	if !sections.Empty() {
		body = suggest.Markdown(sections, cfg.Suggestions.Markers)
	}

	switch format {
	case FormatMarkdown:
		_, err := fmt.Fprint(w, ensureNewline(body))
		return err
	case FormatHTML:
		html, err := suggest.MarkdownToHTML(body)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, html)
		return err
	default:
		r, err := newRenderer(cfg.Render)
		if err != nil {
			return fmt.Errorf("create renderer: %w", err)
		}
		out, err := r.Render(body)
		if err != nil {
			return fmt.Errorf("render suggestion: %w", err)
		}
		_, err = fmt.Fprint(w, out)
		return err
	}
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// printTask writes a snapshot as aligned fields.
func printTask(p *printer.Printer, t task.Task) {
	p.Field("Task", t.TaskID)
	p.Field("Status", statusLabel(t.Status))
	p.Field("Progress", fmt.Sprintf("%s %d%%", styles.ProgressBar(t.Progress, 24), t.Progress))
	if t.StatusMessage != "" {
		p.Field("Message", t.StatusMessage)
	}
	if name := firstNonEmpty(t.OriginalFileName, t.FileName); name != "" {
		p.Field("File", name)
	}
	if t.EstimatedRemaining > 0 && !t.Status.IsTerminal() {
		p.Field("Remaining", t.EstimatedRemaining.String())
	}
	if t.ResultRef != "" {
		p.Field("Résumé", t.ResultRef)
	}
	if t.ErrorDetail != "" {
		p.Field("Error", styles.TextErrorStyle.Render(t.ErrorDetail))
	}
}

// progressLine is the one-line form used while waiting.
func progressLine(t task.Task) string {
	line := fmt.Sprintf("%s %3d%% %s", styles.ProgressBar(t.Progress, 24), t.Progress, statusLabel(t.Status))
	if t.StatusMessage != "" {
		line += " " + styles.TextMutedStyle.Render(t.StatusMessage)
	}
	return line
}

func statusLabel(s task.Status) string {
	switch s {
	case task.StatusCompleted:
		return styles.TextSuccessStyle.Render(string(s))
	case task.StatusFailed:
		return styles.TextErrorStyle.Render(string(s))
	case task.StatusProcessing:
		return styles.TextPrimaryBoldStyle.Render(string(s))
	default:
		return styles.TextMutedStyle.Render(string(s))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// watchHangup marks sub as backgrounded when the controlling terminal hangs
// up. The returned func stops watching.
func watchHangup(sub *stream.Subscription) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-sub.Done():
				return
			case <-ch:
				sub.SetBackgrounded(true)
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(stop)
	}
}

// rememberCompleted stores the résumé id of a completed task.
func rememberCompleted(ctx context.Context, a *app.App, t task.Task) {
	if t.Status != task.StatusCompleted || t.ResultRef == "" {
		return
	}
	if err := a.Workspace.SetCurrentResume(ctx, t.ResultRef); err != nil {
		printer.Ctx(ctx).Warnf("could not remember résumé %s: %v", t.ResultRef, err)
	}
}
