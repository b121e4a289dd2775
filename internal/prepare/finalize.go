package prepare

import (
	"github.com/kurihiro0119/github-issue-insights/internal/record"
	"github.com/kurihiro0119/github-issue-insights/internal/recordstore"
)

var finalFields = []string{
	record.FieldIssueNumber,
	record.FieldTitle,
	record.FieldBodyClean,
	record.FieldLabels,
	"created_at",
	"state",
}

type finalComment struct {
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
	BodyClean string `json:"body_clean"`
}

// FinalCategory prefers the LLM category, then the rule-based one
func FinalCategory(r *record.Record) string {
	if c := r.String(record.FieldCategoryLLM); c != "" {
		return c
	}
	if c := r.String(record.FieldCategory); c != "" {
		return c
	}
	return "other"
}

// Finalize projects a relabeled record onto the final dataset fields
func Finalize(r *record.Record) (*record.Record, error) {
	out := record.New()
	for _, f := range finalFields {
		if raw, ok := r.Raw(f); ok {
			if err := out.Set(f, raw); err != nil {
				return nil, err
			}
		}
	}

	if r.Has(record.FieldComments) {
		var comments []record.Comment
		if _, err := r.Get(record.FieldComments, &comments); err != nil {
			return nil, err
		}
		projected := make([]finalComment, len(comments))
		for i, c := range comments {
			projected[i] = finalComment{Author: c.Author, CreatedAt: c.CreatedAt, BodyClean: c.BodyClean}
		}
		if err := out.Set(record.FieldComments, projected); err != nil {
			return nil, err
		}
	}

	if err := out.Set(record.FieldFinalCategory, FinalCategory(r)); err != nil {
		return nil, err
	}
	return out, nil
}

// FinalizeFile finalizes every record of inputPath into outputPath
func FinalizeFile(inputPath, outputPath string) (Distribution, error) {
	records, err := recordstore.ReadRecords(inputPath)
	if err != nil {
		return nil, err
	}

	dist := Distribution{}
	final := make([]*record.Record, len(records))
	for i, r := range records {
		f, err := Finalize(r)
		if err != nil {
			return nil, err
		}
		dist[FinalCategory(r)]++
		final[i] = f
	}
	return dist, recordstore.Persist(final, outputPath)
}
