package prepare

import (
	"sort"
	"strings"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
)

// Unlabeled is the category of an issue without labels
const Unlabeled = "unlabeled"

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"bug", []string{"bug", "error", "fix"}},
	{"feature", []string{"feature", "enhancement", "improvement"}},
	{"question", []string{"question", "help", "support"}},
}

// Classify maps GitHub labels to bug, feature, question or other by keyword.
// An issue without labels is unlabeled.
func Classify(labels []string) string {
	if len(labels) == 0 {
		return Unlabeled
	}
	lower := make([]string, len(labels))
	for i, l := range labels {
		lower[i] = strings.ToLower(l)
	}
	for _, ck := range categoryKeywords {
		for _, l := range lower {
			for _, kw := range ck.keywords {
				if strings.Contains(l, kw) {
					return ck.category
				}
			}
		}
	}
	return "other"
}

// Distribution counts issues per category
type Distribution map[string]int

// Sorted returns categories by descending count, then name
func (d Distribution) Sorted() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if d[keys[i]] != d[keys[j]] {
			return d[keys[i]] > d[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Counts returns the distribution in Sorted order
func (d Distribution) Counts() []domain.CategoryCount {
	out := make([]domain.CategoryCount, 0, len(d))
	for _, k := range d.Sorted() {
		out = append(out, domain.CategoryCount{Category: k, Count: d[k]})
	}
	return out
}
