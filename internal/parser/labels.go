// Package parser turns free-form generation text into structured results.
package parser

import (
	"regexp"
	"strings"
)

// linePrefix matches list markers and "Issue 3:" style prefixes a model may
// put in front of a label.
var linePrefix = regexp.MustCompile(`^(?:[-*•]\s*|(?:issue\s*)?#?\d+\s*[.):\-]\s*|issue\s*#?\d+\s*)`)

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// ParseLabels reads one label per non-empty line, positionally. Each line is
// matched case-insensitively against categories; unmatched and missing lines
// become def. The result always has exactly n entries.
func ParseLabels(text string, n int, categories []string, def string) []string {
	if n <= 0 {
		return []string{}
	}

	out := make([]string, 0, n)
	for _, line := range strings.Split(stripFences(text), "\n") {
		if len(out) == n {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, matchCategory(line, categories, def))
	}
	for len(out) < n {
		out = append(out, def)
	}
	return out
}

func matchCategory(line string, categories []string, def string) string {
	line = strings.ToLower(strings.TrimSpace(line))
	line = strings.TrimSpace(linePrefix.ReplaceAllString(line, ""))
	words := strings.Fields(nonWord.ReplaceAllString(line, " "))
	if len(words) == 0 {
		return def
	}

	// Exact token first, then any whole word on the line.
	joined := strings.Join(words, " ")
	for _, c := range categories {
		if joined == strings.ToLower(c) {
			return c
		}
	}
	for _, c := range categories {
		lc := strings.ToLower(c)
		for _, w := range words {
			if w == lc {
				return c
			}
		}
	}
	return def
}
