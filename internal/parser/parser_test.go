package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var categories = []string{"bug", "feature", "question", "other"}

func TestParseLabelsPositional(t *testing.T) {
	got := ParseLabels("bug\nquestion", 2, categories, "other")
	assert.Equal(t, []string{"bug", "question"}, got)
}

func TestParseLabelsLengthAlwaysMatchesBatch(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []string
	}{
		{"fewer lines pad with default", "feature", 3, []string{"feature", "other", "other"}},
		{"empty reply", "", 2, []string{"other", "other"}},
		{"extra lines truncated", "bug\nbug\nbug", 2, []string{"bug", "bug"}},
		{"zero batch", "bug", 0, []string{}},
		{"unmatched line keeps its slot", "bug\nno idea\nquestion", 3, []string{"bug", "other", "question"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLabels(tt.text, tt.n, categories, "other")
			assert.Len(t, got, tt.n)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLabelsToleratesFormatting(t *testing.T) {
	text := "```\n1. BUG\n2) Feature\n- question\nIssue 4: this is a Bug.\n```"
	got := ParseLabels(text, 4, categories, "other")
	assert.Equal(t, []string{"bug", "feature", "question", "bug"}, got)
}

func TestParseInsightsNumberedSections(t *testing.T) {
	text := "BUSINESS INSIGHTS:\n" +
		"1. Users churn when installation fails on Windows\n" +
		"2. [insight here]\n" +
		"3) Short\n" +
		"\n" +
		"TECHNICAL INSIGHTS:\n" +
		"1: Async callbacks leak memory in streaming mode\n" +
		"2. ...\n" +
		"3. insert insight about retries\n"

	got := ParseInsights(text)
	assert.Equal(t, []string{"Users churn when installation fails on Windows"}, got.Business)
	assert.Equal(t, []string{"Async callbacks leak memory in streaming mode"}, got.Technical)
}

func TestParseInsightsFallsBackToBullets(t *testing.T) {
	text := "Business:\n- Enterprise users ask for SSO integration\n* tiny\n" +
		"Technical:\n• Vector store adapters duplicate retry logic\n"

	got := ParseInsights(text)
	assert.Equal(t, []string{"Enterprise users ask for SSO integration"}, got.Business)
	assert.Equal(t, []string{"Vector store adapters duplicate retry logic"}, got.Technical)
}

func TestParseInsightsWithoutHeadersIsEmpty(t *testing.T) {
	got := ParseInsights("1. Something fairly long but outside any section\n- another bullet point line")
	assert.True(t, got.Empty())
	assert.NotNil(t, got.Business)
	assert.NotNil(t, got.Technical)
}

func TestParseInsightsIgnoresCodeFences(t *testing.T) {
	text := "```\nBUSINESS INSIGHTS:\n1. hidden inside a code block entirely\n```\n" +
		"TECHNICAL INSIGHTS:\n1. `Tool` schemas drift between provider packages\n"

	got := ParseInsights(text)
	assert.Empty(t, got.Business)
	assert.Equal(t, []string{"Tool schemas drift between provider packages"}, got.Technical)
}

func TestParseSummaries(t *testing.T) {
	assert.Equal(t, []string{"One summary spread over lines."},
		ParseSummaries("One summary\nspread over lines.", 1))

	text := "Summary 1: The loader crashes on empty files.\n" +
		"It affects v0.2.\n" +
		"Summary 3: Users want streaming support.\n" +
		"Summary 9: out of range"
	got := ParseSummaries(text, 3)
	assert.Equal(t, []string{
		"The loader crashes on empty files. It affects v0.2.",
		"",
		"Users want streaming support. Summary 9: out of range",
	}, got)
}
