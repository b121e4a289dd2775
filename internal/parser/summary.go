package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var summaryLine = regexp.MustCompile(`(?i)^\s*(?:\*\*)?(?:summary|issue)?\s*#?(\d+)(?:\*\*)?\s*[:.)\-]\s*(.*)$`)

// ParseSummaries splits a reply into n summaries. A single-record batch takes
// the whole reply. Larger batches read "Summary N: ..." or "N. ..." lines,
// with following unnumbered lines continuing the current summary. Missing
// entries are empty strings.
func ParseSummaries(text string, n int) []string {
	out := make([]string, n)
	if n == 0 {
		return out
	}
	text = strings.TrimSpace(stripFences(text))
	if n == 1 {
		out[0] = strings.Join(strings.Fields(text), " ")
		return out
	}

	current := -1
	for _, line := range strings.Split(text, "\n") {
		if m := summaryLine.FindStringSubmatch(line); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err == nil && idx >= 1 && idx <= n {
				current = idx - 1
				out[current] = appendSentence(out[current], m[2])
				continue
			}
		}
		if current >= 0 {
			out[current] = appendSentence(out[current], line)
		}
	}
	return out
}

func appendSentence(existing, more string) string {
	more = strings.Join(strings.Fields(more), " ")
	if more == "" {
		return existing
	}
	if existing == "" {
		return more
	}
	return existing + " " + more
}
