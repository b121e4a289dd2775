// Package prepare turns raw GitHub issues and comments into the classified
// issue records the LLM stages consume, and projects relabeled records into
// the final dataset.
package prepare

import (
	"strings"
	"time"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	"github.com/kurihiro0119/github-issue-insights/internal/record"
	"github.com/kurihiro0119/github-issue-insights/internal/recordstore"
)

// Stats summarizes one prepare run
type Stats struct {
	Issues     int
	Comments   int
	Kept       int
	Dropped    int
	MultiLabel int
	Categories Distribution
}

// Merge attaches comments to their issue by number, keeping issue order
func Merge(issues []domain.RawIssue, comments []domain.RawComment) []record.Issue {
	byIssue := make(map[int][]record.Comment)
	for _, c := range comments {
		byIssue[c.IssueNumber] = append(byIssue[c.IssueNumber], record.Comment{
			CommentID: c.CommentID,
			Author:    c.User,
			Body:      c.Body,
			CreatedAt: formatTime(c.CreatedAt),
		})
	}

	merged := make([]record.Issue, 0, len(issues))
	for _, is := range issues {
		labels := is.Labels
		if labels == nil {
			labels = []string{}
		}
		cs := byIssue[is.Number]
		if cs == nil {
			cs = []record.Comment{}
		}
		merged = append(merged, record.Issue{
			IssueNumber: is.Number,
			Title:       is.Title,
			Body:        is.Body,
			Labels:      labels,
			Author:      is.User,
			CreatedAt:   formatTime(is.CreatedAt),
			State:       is.State,
			Comments:    cs,
			URL:         is.URL,
		})
	}
	return merged
}

// Clean strips markdown from the body and comments and collects emojis.
// Comments left empty are dropped; ok is false when nothing remains.
func Clean(is record.Issue) (record.Issue, bool) {
	out := is
	out.Title = strings.TrimSpace(is.Title)
	out.BodyClean = CleanMarkdown(is.Body)
	out.Emojis = ExtractEmojis(is.Body)
	out.Body = ""

	out.Comments = make([]record.Comment, 0, len(is.Comments))
	for _, c := range is.Comments {
		clean := CleanMarkdown(c.Body)
		if clean == "" {
			continue
		}
		out.Comments = append(out.Comments, record.Comment{
			Author:    c.Author,
			CreatedAt: c.CreatedAt,
			BodyClean: clean,
			Emojis:    ExtractEmojis(c.Body),
		})
	}
	return out, out.BodyClean != "" || len(out.Comments) > 0
}

// Prepare merges, cleans and classifies raw issues
func Prepare(issues []domain.RawIssue, comments []domain.RawComment) ([]record.Issue, Stats) {
	stats := Stats{Issues: len(issues), Comments: len(comments), Categories: Distribution{}}

	var out []record.Issue
	for _, is := range Merge(issues, comments) {
		clean, ok := Clean(is)
		if !ok {
			stats.Dropped++
			continue
		}
		if len(clean.Labels) > 1 {
			stats.MultiLabel++
		}
		clean.Category = Classify(clean.Labels)
		stats.Categories[clean.Category]++
		out = append(out, clean)
	}
	stats.Kept = len(out)
	return out, stats
}

// PrepareFiles reads raw issue and comment files and writes the classified records
func PrepareFiles(issuesPath, commentsPath, outputPath string) (Stats, error) {
	issues, err := recordstore.DecodeJSONL[domain.RawIssue](issuesPath)
	if err != nil {
		return Stats{}, err
	}
	comments, err := recordstore.DecodeJSONL[domain.RawComment](commentsPath)
	if err != nil {
		return Stats{}, err
	}

	prepared, stats := Prepare(issues, comments)
	err = recordstore.WriteJSONL(outputPath, len(prepared), func(i int) (interface{}, error) {
		return prepared[i], nil
	})
	return stats, err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
