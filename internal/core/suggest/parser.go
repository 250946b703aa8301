// Package suggest turns free-form optimization feedback into structured
// sections.
package suggest

import (
	"regexp"
	"strings"
)

// Section is the ordered item list of one category. A nil Section means the
// category's marker was not found; a non-nil empty Section means it was found
// with no items.
type Section []string

// Present reports whether the section's marker was found.
func (s Section) Present() bool { return s != nil }

// Sections is the structured view of one suggestion text.
type Sections struct {
	Advantages   Section `json:"advantages"`
	Weaknesses   Section `json:"weaknesses"`
	Improvements Section `json:"improvements"`
}

// Empty reports whether no marker was found at all.
func (s Sections) Empty() bool {
	return !s.Advantages.Present() && !s.Weaknesses.Present() && !s.Improvements.Present()
}

// Parser extracts sections from suggestion text.
type Parser interface {
	Parse(text string) Sections
}

// Markers are the literal labels that open each section.
type Markers struct {
	Advantages   string `yaml:"advantages"`
	Weaknesses   string `yaml:"weaknesses"`
	Improvements string `yaml:"improvements"`
}

// DefaultMarkers are the labels used by the analysis backend.
var DefaultMarkers = Markers{
	Advantages:   "优势亮点",
	Weaknesses:   "不足之处",
	Improvements: "改进建议",
}

func (m Markers) list() [3]string {
	return [3]string{m.Advantages, m.Weaknesses, m.Improvements}
}

// enumeration matches the "<digits>. " prefix of a numbered list item.
var enumeration = regexp.MustCompile(`\d+\.\s`)

// MarkerParser locates section markers and splits each span on numbered-list
// prefixes. It never fails; unmatched text is discarded.
type MarkerParser struct {
	markers Markers
}

var _ Parser = (*MarkerParser)(nil)

// NewMarkerParser creates a parser. Empty markers fall back to DefaultMarkers.
func NewMarkerParser(m Markers) *MarkerParser {
	if m.Advantages == "" {
		m.Advantages = DefaultMarkers.Advantages
	}
	if m.Weaknesses == "" {
		m.Weaknesses = DefaultMarkers.Weaknesses
	}
	if m.Improvements == "" {
		m.Improvements = DefaultMarkers.Improvements
	}
	return &MarkerParser{markers: m}
}

// Markers returns the labels this parser looks for.
func (p *MarkerParser) Markers() Markers { return p.markers }

// Parse implements Parser.
func (p *MarkerParser) Parse(text string) Sections {
	markers := p.markers.list()

	var pos [3]int
	for i, m := range markers {
		pos[i] = strings.Index(text, m)
	}

	var out [3]Section
	for i, m := range markers {
		if pos[i] < 0 {
			continue
		}

		start := pos[i] + len(m)
		end := len(text)
		for j := range markers {
			if j != i && pos[j] > pos[i] && pos[j] < end {
				end = pos[j]
			}
		}
		// a marker embedded inside another marker
		end = max(end, start)

		out[i] = items(text[start:end], m)
	}

	return Sections{
		Advantages:   out[0],
		Weaknesses:   out[1],
		Improvements: out[2],
	}
}

func items(span, marker string) Section {
	result := make(Section, 0)
	for _, frag := range enumeration.Split(span, -1) {
		item := cleanFragment(frag)
		if item == "" || isRestatement(item, marker) {
			continue
		}
		result = append(result, item)
	}
	return result
}

func cleanFragment(frag string) string {
	s := strings.TrimSpace(frag)
	s = strings.TrimSpace(strings.TrimLeft(s, ":："))

	if trimmed, ok := strings.CutSuffix(s, ";"); ok {
		s = trimmed
	} else if trimmed, ok := strings.CutSuffix(s, "；"); ok {
		s = trimmed
	}

	return strings.TrimSpace(s)
}

func isRestatement(item, marker string) bool {
	return strings.TrimRight(item, ":：") == marker
}
