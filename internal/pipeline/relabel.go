// Package pipeline defines the LLM-backed stages run by the orchestrator.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
	"github.com/kurihiro0119/github-issue-insights/internal/orchestrator"
	"github.com/kurihiro0119/github-issue-insights/internal/parser"
	"github.com/kurihiro0119/github-issue-insights/internal/record"
)

// Categories are the labels the classifier may answer with
var Categories = []string{"bug", "feature", "question", "other"}

const (
	// DefaultCategory is used for unmatched or missing classifier lines.
	DefaultCategory = "other"
	// Unlabeled is the rule-based category of an issue without labels.
	Unlabeled = "unlabeled"
)

// NeedsRelabel reports whether the rule-based category is unreliable: no
// labels, several labels, or a catch-all category.
func NeedsRelabel(labels []string, category string) bool {
	return len(labels) == 0 || len(labels) > 1 || category == DefaultCategory
}

// Relabel classifies issues into Categories
type Relabel struct {
	// All processes every record instead of only those NeedsRelabel selects.
	All bool
}

// NewRelabel creates the relabel task
func NewRelabel(all bool) *Relabel {
	return &Relabel{All: all}
}

func (t *Relabel) Name() string        { return "relabel" }
func (t *Relabel) ResultField() string { return record.FieldCategoryLLM }

func (t *Relabel) Eligible(r *record.Record) bool {
	if t.All {
		return true
	}
	return NeedsRelabel(r.Labels(), r.String(record.FieldCategory))
}

func (t *Relabel) Prompt(batch []*record.Record) (string, error) {
	var b strings.Builder
	b.WriteString("You are labeling GitHub issues into one of four categories:\n")
	b.WriteString("- bug: describes a problem or error in the system\n")
	b.WriteString("- feature: requests a new feature or enhancement\n")
	b.WriteString("- question: asks a clarification or usage question\n")
	b.WriteString("- other: anything else (meta, docs, chore, etc.)\n\n")
	b.WriteString("For each issue below, return ONLY the category name (bug, feature, question, or other) on a separate line.\n")

	for i, r := range batch {
		body := r.String(record.FieldBodyClean)
		if body == "" {
			body = r.String(record.FieldBody)
		}
		fmt.Fprintf(&b, "\n--- Issue %d ---\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", r.String(record.FieldTitle))
		fmt.Fprintf(&b, "Body: %s\n", body)
	}

	b.WriteString("\nRespond with one category per line (in order):")
	return b.String(), nil
}

func (t *Relabel) Parse(text string, batch []*record.Record) (*orchestrator.Result, error) {
	labels := parser.ParseLabels(text, len(batch), Categories, DefaultCategory)
	return &orchestrator.Result{Values: toValues(labels)}, nil
}

func (t *Relabel) Fallback(batch []*record.Record) *orchestrator.Result {
	labels := make([]string, len(batch))
	for i := range labels {
		labels[i] = DefaultCategory
	}
	return &orchestrator.Result{Values: toValues(labels)}
}

// AccuracyGate spot-checks the classifier against the rule-based categories
// before a fresh relabel run
type AccuracyGate struct {
	SampleSize int
	Threshold  float64

	rng *rand.Rand
	log zerolog.Logger
}

// NewAccuracyGate samples 20 records and requires 80% agreement
func NewAccuracyGate(seed int64, log zerolog.Logger) *AccuracyGate {
	return &AccuracyGate{
		SampleSize: 20,
		Threshold:  0.8,
		rng:        rand.New(rand.NewSource(seed)),
		log:        log,
	}
}

// Agrees reports whether a classifier answer matches the rule-based
// category. Any valid answer agrees with an unlabeled issue.
func Agrees(current, got string) bool {
	if current == Unlabeled {
		for _, c := range Categories {
			if got == c {
				return true
			}
		}
		return false
	}
	return got == current
}

// Check classifies a random sample one record at a time. Samples whose call
// fails are left out of the ratio; quota exhaustion and cancellation abort.
func (g *AccuracyGate) Check(ctx context.Context, records []*record.Record, pending []int, classify orchestrator.ClassifyFunc) (orchestrator.GateResult, error) {
	n := g.SampleSize
	if n <= 0 || n > len(pending) {
		n = len(pending)
	}

	var res orchestrator.GateResult
	for i, p := range g.rng.Perm(len(pending))[:n] {
		r := records[pending[p]]
		out, err := classify(ctx, []*record.Record{r})
		if err != nil {
			if apperrors.IsQuotaExhausted(err) || ctx.Err() != nil {
				return res, err
			}
			g.log.Warn().Err(err).Int("sample", i+1).Msg("sample classification failed")
			continue
		}

		got, _ := out.Values[0].(string)
		current := r.String(record.FieldCategory)
		match := Agrees(current, got)
		res.Total++
		if match {
			res.Correct++
		}
		g.log.Debug().
			Int("sample", i+1).
			Int("of", n).
			Str("title", truncate(r.String(record.FieldTitle), 60)).
			Str("current", current).
			Str("llm", got).
			Bool("match", match).
			Msg("accuracy sample")
	}

	if res.Total == 0 {
		return res, nil
	}
	res.Accuracy = float64(res.Correct) / float64(res.Total)
	res.Passed = res.Accuracy >= g.Threshold
	return res, nil
}

func toValues(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
