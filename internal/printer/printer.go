// Package printer writes human-facing status lines for CLI commands.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/colonyops/resumepilot/internal/core/styles"
)

// Printer writes styled lines to w.
type Printer struct {
	w io.Writer
}

// New creates a printer on w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

type ctxKey struct{}

// NewContext attaches p to ctx.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the printer attached to ctx, or one writing to stderr.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

// Writer exposes the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Printf writes an unstyled line.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

// Successf writes a line prefixed with a success mark.
func (p *Printer) Successf(format string, args ...any) {
	p.line(styles.TextSuccessStyle.Render("✔"), format, args...)
}

// Infof writes a line prefixed with an info mark.
func (p *Printer) Infof(format string, args ...any) {
	p.line(styles.TextPrimaryBoldStyle.Render("●"), format, args...)
}

// Warnf writes a line prefixed with a warning mark.
func (p *Printer) Warnf(format string, args ...any) {
	p.line(styles.TextWarningStyle.Render("●"), format, args...)
}

// Errorf writes a line prefixed with an error mark.
func (p *Printer) Errorf(format string, args ...any) {
	p.line(styles.TextErrorStyle.Render("✘"), format, args...)
}

// Field writes an aligned "label value" line.
func (p *Printer) Field(label string, value any) {
	_, _ = fmt.Fprintf(p.w, "%s%s\n", styles.LabelStyle.Render(label), styles.ValueStyle.Render(fmt.Sprint(value)))
}

func (p *Printer) line(mark, format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, "%s %s\n", mark, fmt.Sprintf(format, args...))
}
