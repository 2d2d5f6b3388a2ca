package proposal

import (
	"strings"
)

// Section is one labelled block of proposal text.
type Section struct {
	Title string
	Lines []string
}

// Parse classifies text into sections. A line whose trimmed text equals a
// recognised title (ignoring case) opens that section; other non-blank
// lines belong to the open section, or to Summary before any title.
// The result follows the script order with Summary first and omits empty
// sections. Parsing is lossy: titles with numbering or markup around them
// are treated as body text.
func (s Script) Parse(text string) []Section {
	content := make(map[string][]string)
	current := ""
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if title, ok := s.matchTitle(trimmed, s.Sections); ok {
			current = title
			continue
		}
		target := current
		if target == "" {
			target = SummaryTitle
		}
		content[target] = append(content[target], trimmed)
	}

	var out []Section
	for _, title := range append([]string{SummaryTitle}, s.Sections...) {
		if lines := content[title]; len(lines) > 0 {
			out = append(out, Section{Title: title, Lines: lines})
		}
	}
	return out
}

// IsFinal reports whether text looks like the finished proposal: at least
// CompletionThreshold of the completion titles appear anywhere in it,
// ignoring case. Markup or numbering around a title still counts.
func (s Script) IsFinal(text string) bool {
	lower := strings.ToLower(text)
	found := 0
	for _, title := range s.CompletionTitles {
		if strings.Contains(lower, strings.ToLower(title)) {
			found++
		}
	}
	return found >= s.CompletionThreshold
}

func (s Script) matchTitle(line string, titles []string) (string, bool) {
	for _, title := range titles {
		if strings.EqualFold(line, title) {
			return title, true
		}
	}
	return "", false
}

// Parse classifies text using DefaultScript.
func Parse(text string) []Section {
	return DefaultScript.Parse(text)
}

// IsFinal applies the DefaultScript completion check.
func IsFinal(text string) bool {
	return DefaultScript.IsFinal(text)
}
