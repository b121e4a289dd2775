package domain

import "time"

// InsightBatch is the insight set produced for one batch of issues
type InsightBatch struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	BatchNumber  int       `json:"batch_number"`
	IssueNumbers []int     `json:"issue_numbers"`
	Business     []string  `json:"business_insights"`
	Technical    []string  `json:"technical_insights"`
	Raw          string    `json:"raw_llm_response"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
}

// RankedInsight is one distinct insight and how many batches produced it
type RankedInsight struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// InsightDigest aggregates insights across batches
type InsightDigest struct {
	Batches   int             `json:"batches"`
	Issues    int             `json:"issues"`
	Business  []RankedInsight `json:"business"`
	Technical []RankedInsight `json:"technical"`
}

// RunDetail is a run with its batch history
type RunDetail struct {
	Run     *Run           `json:"run"`
	Batches []*BatchResult `json:"batches"`
}

// CategoryCount is one row of a category distribution
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}
