// Package styles provides the shared lipgloss styles for CLI output.
package styles

import (
	"strings"

	glamouransi "github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// CurrentPalette is the active palette.
var CurrentPalette Palette

// Style exports.
var (
	TextPrimaryBoldStyle    lipgloss.Style
	TextForegroundBoldStyle lipgloss.Style
	TextMutedStyle          lipgloss.Style
	TextSuccessStyle        lipgloss.Style
	TextWarningStyle        lipgloss.Style
	TextErrorStyle          lipgloss.Style

	LabelStyle lipgloss.Style
	ValueStyle lipgloss.Style
)

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	CurrentPalette = p

	TextPrimaryBoldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Primary)).Bold(true)
	TextForegroundBoldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Foreground)).Bold(true)
	TextMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted))
	TextSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Success))
	TextWarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Warning))
	TextErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Error))

	LabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Muted)).Width(14)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(p.Foreground))
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(themes[DefaultTheme])
}

// ProgressColor blends from the warning color at 0% to the success color at
// 100%.
func ProgressColor(percent int) lipgloss.Color {
	switch {
	case percent <= 0:
		return lipgloss.Color(CurrentPalette.Warning)
	case percent >= 100:
		return lipgloss.Color(CurrentPalette.Success)
	}

	from, err1 := colorful.Hex(CurrentPalette.Warning)
	to, err2 := colorful.Hex(CurrentPalette.Success)
	if err1 != nil || err2 != nil {
		return lipgloss.Color(CurrentPalette.Success)
	}

	t := float64(percent) / 100
	return lipgloss.Color(from.BlendLab(to, t).Clamped().Hex())
}

// ProgressBar renders a width-cell bar filled to percent.
func ProgressBar(percent, width int) string {
	if width <= 0 {
		return ""
	}
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100

	bar := lipgloss.NewStyle().Foreground(ProgressColor(percent)).Render(strings.Repeat("█", filled))
	rest := TextMutedStyle.Render(strings.Repeat("░", width-filled))
	return bar + rest
}

func hexPtr(hex string) *string {
	if hex == "" {
		return nil
	}
	return &hex
}

// GlamourStyle returns a glamour style config derived from the active theme.
func GlamourStyle() glamouransi.StyleConfig {
	cfg := glamourstyles.DarkStyleConfig

	fg := hexPtr(CurrentPalette.Foreground)
	primary := hexPtr(CurrentPalette.Primary)
	secondary := hexPtr(CurrentPalette.Secondary)
	muted := hexPtr(CurrentPalette.Muted)
	surface := hexPtr(CurrentPalette.Surface)

	cfg.Document.Color = fg
	cfg.Paragraph.Color = fg

	cfg.Heading.Color = primary
	cfg.H1.Color = fg
	cfg.H1.BackgroundColor = surface
	cfg.H2.Color = primary
	cfg.H3.Color = primary

	cfg.Enumeration.Color = secondary
	cfg.Emph.Color = muted

	cfg.BlockQuote.Color = muted
	cfg.HorizontalRule.Color = muted

	cfg.Link.Color = secondary
	cfg.LinkText.Color = secondary

	cfg.Code.Color = secondary
	cfg.CodeBlock.Color = muted

	return cfg
}
