package prepare

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	"github.com/kurihiro0119/github-issue-insights/internal/record"
	"github.com/kurihiro0119/github-issue-insights/internal/recordstore"
)

func TestCleanMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"fenced code", "before\n```go\nfmt.Println(1)\n```\nafter", "before [code] after"},
		{"inline code", "call `Load()` first", "call [code] first"},
		{"urls", "see https://example.com/x and www.example.org", "see [link] and [link]"},
		{"formatting", "## Title\n> quoted **bold** _it_ - item", "Title quoted bold it item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanMarkdown(tt.in))
		})
	}
}

func TestExtractEmojis(t *testing.T) {
	assert.Equal(t, []string{"🚀", "🐛🔥"}, ExtractEmojis("ship 🚀 it, bug 🐛🔥"))
	assert.Equal(t, []string{}, ExtractEmojis("plain"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		labels []string
		want   string
	}{
		{nil, Unlabeled},
		{[]string{"Type: Bug"}, "bug"},
		{[]string{"needs-fix"}, "bug"},
		{[]string{"enhancement"}, "feature"},
		{[]string{"help wanted"}, "question"},
		{[]string{"docs"}, "other"},
		{[]string{"question", "bug"}, "bug"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.labels), "%v", tt.labels)
	}
}

func TestPrepareMergesCleansAndClassifies(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	issues := []domain.RawIssue{
		{Number: 1, Title: " Crash ", Body: "It fails `here`", Labels: []string{"bug"}, User: "ann", CreatedAt: created, State: "open"},
		{Number: 2, Title: "Empty", Body: "", Labels: nil},
		{Number: 3, Title: "Comment only", Body: "", Labels: []string{"a", "b"}},
	}
	comments := []domain.RawComment{
		{IssueNumber: 3, CommentID: 30, User: "bob", Body: "**me too** 👍", CreatedAt: created},
		{IssueNumber: 1, CommentID: 10, User: "cy", Body: "```\nlog\n```"},
		{IssueNumber: 1, CommentID: 11, User: "dee", Body: "---"},
	}

	out, stats := Prepare(issues, comments)
	require.Len(t, out, 2)

	assert.Equal(t, 1, out[0].IssueNumber)
	assert.Equal(t, "Crash", out[0].Title)
	assert.Equal(t, "It fails [code]", out[0].BodyClean)
	assert.Equal(t, "2024-05-01T10:00:00Z", out[0].CreatedAt)
	assert.Equal(t, "bug", out[0].Category)
	require.Len(t, out[0].Comments, 1)
	assert.Equal(t, "[code]", out[0].Comments[0].BodyClean)

	assert.Equal(t, 3, out[1].IssueNumber)
	assert.Equal(t, "me too 👍", out[1].Comments[0].BodyClean)
	assert.Equal(t, []string{"👍"}, out[1].Comments[0].Emojis)
	assert.Equal(t, "other", out[1].Category)

	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 1, stats.MultiLabel)
	assert.Equal(t, Distribution{"bug": 1, "other": 1}, stats.Categories)
}

func TestPrepareFiles(t *testing.T) {
	dir := t.TempDir()
	issues := filepath.Join(dir, "issues.jsonl")
	comments := filepath.Join(dir, "comments.jsonl")
	out := filepath.Join(dir, "classified.jsonl")
	require.NoError(t, os.WriteFile(issues, []byte(`{"number":4,"title":"Q","body":"how?","labels":[]}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(comments, nil, 0o644))

	stats, err := PrepareFiles(issues, comments, out)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Categories[Unlabeled])

	records, err := recordstore.ReadRecords(out)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].Int(record.FieldIssueNumber))
	assert.Equal(t, Unlabeled, records[0].String(record.FieldCategory))
	assert.Equal(t, []string{}, records[0].Labels())
}

func TestFinalize(t *testing.T) {
	r := record.New()
	require.NoError(t, r.UnmarshalJSON([]byte(`{"issue_number":5,"title":"T","body_clean":"b","emojis":["x"],`+
		`"labels":["bug"],"author":"ann","created_at":"2024","state":"open",`+
		`"comments":[{"author":"bob","created_at":"2024","body_clean":"c","emojis":["y"]}],`+
		`"category":"bug","category_llm":"question"}`)))

	out, err := Finalize(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"issue_number", "title", "body_clean", "labels", "created_at", "state", "comments", "final_category"}, out.Keys())
	assert.Equal(t, "question", out.String(record.FieldFinalCategory))

	data, err := out.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"comments":[{"author":"bob","created_at":"2024","body_clean":"c"}]`)
	assert.NotContains(t, string(data), "emojis")
}

func TestFinalizeKeepsMarkupInText(t *testing.T) {
	r := record.New()
	require.NoError(t, r.UnmarshalJSON([]byte(`{"issue_number":1,"title":"<div> & co","body_clean":"a < b"}`)))

	out, err := Finalize(r)
	require.NoError(t, err)
	data, err := out.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title":"<div> & co","body_clean":"a < b"`)
}

func TestFinalCategoryPrecedence(t *testing.T) {
	rec := func(js string) *record.Record {
		r := record.New()
		require.NoError(t, r.UnmarshalJSON([]byte(js)))
		return r
	}
	assert.Equal(t, "feature", FinalCategory(rec(`{"category":"bug","category_llm":"feature"}`)))
	assert.Equal(t, "bug", FinalCategory(rec(`{"category":"bug","category_llm":""}`)))
	assert.Equal(t, "other", FinalCategory(rec(`{}`)))
}

func TestDistributionSorted(t *testing.T) {
	d := Distribution{"bug": 3, "other": 1, "feature": 3}
	assert.Equal(t, []string{"bug", "feature", "other"}, d.Sorted())
	assert.Equal(t, domain.CategoryCount{Category: "bug", Count: 3}, d.Counts()[0])
}
