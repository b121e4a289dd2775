package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
	"github.com/kurihiro0119/github-issue-insights/internal/orchestrator"
	"github.com/kurihiro0119/github-issue-insights/internal/parser"
	"github.com/kurihiro0119/github-issue-insights/internal/record"
	"github.com/kurihiro0119/github-issue-insights/internal/recordstore"
)

const (
	maxPromptComments = 2
	maxCommentChars   = 150
)

// Insights asks for business and technical insights across a batch of issues.
// Every record in the batch is tagged with the batch ID; the insight set
// itself is a batch artifact.
type Insights struct{}

// NewInsights creates the insights task
func NewInsights() *Insights {
	return &Insights{}
}

func (t *Insights) Name() string                 { return "insights" }
func (t *Insights) ResultField() string          { return record.FieldInsightBatch }
func (t *Insights) Eligible(*record.Record) bool { return true }

func (t *Insights) Prompt(batch []*record.Record) (string, error) {
	var b strings.Builder
	b.WriteString("You are an expert AI analyst. Analyze these GitHub issues and provide EXACTLY 10 insights.\n\n")
	b.WriteString("STRICT OUTPUT FORMAT (copy this exactly):\n")
	b.WriteString("BUSINESS INSIGHTS:\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%d. [insight here]\n", i)
	}
	b.WriteString("\nTECHNICAL INSIGHTS:\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%d. [insight here]\n", i)
	}
	b.WriteString("\nRULES:\n")
	b.WriteString("- Each insight must be 20 words or fewer\n")
	b.WriteString("- Start each line with the number (1-5)\n")
	b.WriteString("- Be specific and actionable\n")
	b.WriteString("- Focus on patterns across issues, not individual issues\n")
	b.WriteString("- NO extra text, explanations, or formatting\n\n")
	b.WriteString("===== ISSUES TO ANALYZE =====\n\n")

	for i, r := range batch {
		var issue record.Issue
		if err := r.Decode(&issue); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Issue %d:\n", i+1)
		fmt.Fprintf(&b, "Type: %s\n", orNA(issue.FinalCategory))
		fmt.Fprintf(&b, "Summary: %s\n", orNA(issue.Summary))

		shown := 0
		for _, c := range issue.Comments {
			if shown == maxPromptComments {
				break
			}
			text := strings.ReplaceAll(strings.TrimSpace(c.Text()), "\n", " ")
			shown++
			if text == "" {
				continue
			}
			fmt.Fprintf(&b, "Comment: %s\n", truncateBytes(text, maxCommentChars))
		}
		b.WriteString("\n")
	}

	b.WriteString("===== END ISSUES =====\n\n")
	b.WriteString("Now provide your analysis in the EXACT format shown above:\n")
	return b.String(), nil
}

// Parse requires at least one insight; a reply without any is retried
func (t *Insights) Parse(text string, batch []*record.Record) (*orchestrator.Result, error) {
	ins := parser.ParseInsights(text)
	if ins.Empty() {
		return nil, parseErrorf("no insights in reply")
	}
	return t.result(batch, ins, text), nil
}

func (t *Insights) Fallback(batch []*record.Record) *orchestrator.Result {
	return t.result(batch, parser.Insights{Business: []string{}, Technical: []string{}}, "")
}

func (t *Insights) result(batch []*record.Record, ins parser.Insights, raw string) *orchestrator.Result {
	ib := &domain.InsightBatch{
		ID:           uuid.NewString(),
		IssueNumbers: make([]int, len(batch)),
		Business:     ins.Business,
		Technical:    ins.Technical,
		Raw:          raw,
	}
	values := make([]interface{}, len(batch))
	for i, r := range batch {
		ib.IssueNumbers[i] = r.Int(record.FieldIssueNumber)
		values[i] = ib.ID
	}
	return &orchestrator.Result{Values: values, Artifact: ib}
}

// InsightStore persists insight sets
type InsightStore interface {
	SaveInsightBatch(ctx context.Context, batch *domain.InsightBatch) error
}

// InsightSink appends each insight set to a JSON-lines file and, when a
// store is configured, to the database
type InsightSink struct {
	Path  string
	Store InsightStore
	Now   func() time.Time
}

func (s *InsightSink) Consume(ctx context.Context, info orchestrator.BatchInfo, artifact interface{}) error {
	ib, ok := artifact.(*domain.InsightBatch)
	if !ok {
		return apperrors.NewInternalError(fmt.Sprintf("unexpected artifact %T", artifact), nil)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ib.RunID = info.RunID
	ib.BatchNumber = info.Number
	ib.Model = info.Model
	ib.CreatedAt = now().UTC()

	if s.Path != "" {
		if err := recordstore.AppendJSONL(s.Path, ib); err != nil {
			return err
		}
	}
	if s.Store != nil {
		if err := s.Store.SaveInsightBatch(ctx, ib); err != nil {
			return err
		}
	}
	return nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

func parseErrorf(format string, args ...interface{}) error {
	return apperrors.NewParseError(fmt.Sprintf(format, args...), nil)
}
