package suggest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// Markdown renders the present sections as headed ordered lists, using the
// marker labels as headings. Absent sections are omitted.
func Markdown(s Sections, m Markers) string {
	labels := m.list()
	sections := [3]Section{s.Advantages, s.Weaknesses, s.Improvements}

	var b strings.Builder
	for i, sec := range sections {
		if !sec.Present() {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n\n", labels[i])
		if len(sec) == 0 {
			b.WriteString("_No items._\n")
			continue
		}
		for n, item := range sec {
			fmt.Fprintf(&b, "%d. %s\n", n+1, item)
		}
	}
	return b.String()
}

// HTML renders the sections to an HTML fragment.
func HTML(s Sections, m Markers) (string, error) {
	return MarkdownToHTML(Markdown(s, m))
}

// MarkdownToHTML converts a Markdown document to an HTML fragment.
func MarkdownToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}
