package pipeline

import (
	"fmt"
	"strings"

	"github.com/kurihiro0119/github-issue-insights/internal/orchestrator"
	"github.com/kurihiro0119/github-issue-insights/internal/parser"
	"github.com/kurihiro0119/github-issue-insights/internal/record"
)

const (
	// MaxInputChars bounds the text sent for one summary.
	MaxInputChars = 4000
	// ShortTextChars is the length below which text is its own summary.
	ShortTextChars = 50
	// maxWordChars drops tokens this long or longer; they are usually corrupt data.
	maxWordChars = 50
)

// Summarize writes a short summary of each issue
type Summarize struct {
	MaxInputChars int
}

// NewSummarize creates the summarize task
func NewSummarize() *Summarize {
	return &Summarize{MaxInputChars: MaxInputChars}
}

func (t *Summarize) Name() string                 { return "summarize" }
func (t *Summarize) ResultField() string          { return record.FieldSummary }
func (t *Summarize) Eligible(*record.Record) bool { return true }

// Precompute answers empty and very short inputs without a remote call
func (t *Summarize) Precompute(r *record.Record) (interface{}, bool) {
	text := CleanForSummary(SummaryInput(r))
	if len(text) < ShortTextChars {
		return text, true
	}
	return nil, false
}

// Prompt sends the cleaned text alone for a single record, which is what a
// dedicated summarization model expects. Larger batches get numbered
// instructions for a general model.
func (t *Summarize) Prompt(batch []*record.Record) (string, error) {
	if len(batch) == 1 {
		return t.input(batch[0]), nil
	}

	var b strings.Builder
	b.WriteString("Summarize each GitHub issue below in one or two sentences.\n")
	b.WriteString("Respond with exactly one line per issue, in order, formatted as \"Summary N: <summary>\".\n")
	for i, r := range batch {
		fmt.Fprintf(&b, "\nIssue %d:\n%s\n", i+1, t.input(r))
	}
	return b.String(), nil
}

// Parse keeps every summary found. Records without one are left pending;
// a reply with no summary at all is a parse error.
func (t *Summarize) Parse(text string, batch []*record.Record) (*orchestrator.Result, error) {
	summaries := parser.ParseSummaries(text, len(batch))
	values := make([]interface{}, len(summaries))
	found := 0
	for i, s := range summaries {
		if s != "" {
			values[i] = s
			found++
		}
	}
	if found == 0 {
		return nil, parseErrorf("no summary in reply for %d issues", len(batch))
	}
	return &orchestrator.Result{Values: values}, nil
}

func (t *Summarize) Fallback(batch []*record.Record) *orchestrator.Result {
	return &orchestrator.Result{Values: toValues(make([]string, len(batch)))}
}

func (t *Summarize) input(r *record.Record) string {
	text := CleanForSummary(SummaryInput(r))
	limit := t.MaxInputChars
	if limit <= 0 {
		limit = MaxInputChars
	}
	if len(text) > limit {
		text = text[:limit] + "..."
	}
	return text
}

// SummaryInput joins the title and cleaned body
func SummaryInput(r *record.Record) string {
	title := r.String(record.FieldTitle)
	body := r.String(record.FieldBodyClean)
	if body == "" {
		return title
	}
	return title + "\n\n" + body
}

// CleanForSummary keeps ASCII only, collapses whitespace and drops
// implausibly long words
func CleanForSummary(text string) string {
	var b strings.Builder
	for _, c := range text {
		if c < 128 {
			b.WriteRune(c)
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if len(w) < maxWordChars {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
