package parser

import (
	"regexp"
	"strings"
)

// MinInsightLength is the shortest insight kept; shorter items are noise.
const MinInsightLength = 11

// Insights holds the two ordered insight lists of one batch
type Insights struct {
	Business  []string `json:"business_insights"`
	Technical []string `json:"technical_insights"`
}

// Empty reports whether nothing was extracted
func (i Insights) Empty() bool {
	return len(i.Business) == 0 && len(i.Technical) == 0
}

type section int

const (
	sectionNone section = iota
	sectionBusiness
	sectionTechnical
)

var (
	codeFence = regexp.MustCompile("(?s)```.*?```")

	businessHeader  = regexp.MustCompile(`(?i)business\s+insight`)
	technicalHeader = regexp.MustCompile(`(?i)technical\s+insight`)
	looseBusiness   = regexp.MustCompile(`(?i)business`)
	looseTechnical  = regexp.MustCompile(`(?i)technical`)

	numberedItem = regexp.MustCompile(`^(\d+)[.)\-:]\s*(.+)$`)

	placeholders = []*regexp.Regexp{
		regexp.MustCompile(`^\[insight here\]$`),
		regexp.MustCompile(`^\[.*?\]$`),
		regexp.MustCompile(`^\.\.\.+$`),
		regexp.MustCompile(`^insert\s+insight`),
		regexp.MustCompile(`^add\s+insight`),
		regexp.MustCompile(`^insight\s+\d+`),
	}
)

// ParseInsights extracts business and technical insights from sectioned
// text. Numbered items are read first; when neither section yields any, a
// looser bullet pass runs over the same lines. Text without headers gives
// two empty lists.
func ParseInsights(raw string) Insights {
	text := strings.ReplaceAll(codeFence.ReplaceAllString(raw, ""), "`", "")
	lines := strings.Split(text, "\n")

	out := scanSections(lines, businessHeader, technicalHeader, func(line string) (string, bool) {
		m := numberedItem.FindStringSubmatch(line)
		if m == nil {
			return "", false
		}
		return strings.TrimSpace(m[2]), true
	})
	if !out.Empty() {
		return out
	}

	return scanSections(lines, looseBusiness, looseTechnical, func(line string) (string, bool) {
		for _, marker := range []string{"-", "•", "*"} {
			if strings.HasPrefix(line, marker) {
				return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
			}
		}
		return "", false
	})
}

func scanSections(lines []string, business, technical *regexp.Regexp, item func(string) (string, bool)) Insights {
	out := Insights{Business: []string{}, Technical: []string{}}
	current := sectionNone
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case business.MatchString(line):
			current = sectionBusiness
			continue
		case technical.MatchString(line):
			current = sectionTechnical
			continue
		}
		if current == sectionNone {
			continue
		}
		insight, ok := item(line)
		if !ok || len(insight) < MinInsightLength || isPlaceholder(insight) {
			continue
		}
		if current == sectionBusiness {
			out.Business = append(out.Business, insight)
		} else {
			out.Technical = append(out.Technical, insight)
		}
	}
	return out
}

func isPlaceholder(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, p := range placeholders {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

func stripFences(text string) string {
	return strings.ReplaceAll(text, "```", "")
}
