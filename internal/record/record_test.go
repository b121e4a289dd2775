package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

func TestRecordPreservesFieldsAndOrder(t *testing.T) {
	line := `{"zeta":1,"title":"Crash on start","labels":["bug"],"extra":{"nested":[1,2]},"alpha":null}`

	r := New()
	require.NoError(t, json.Unmarshal([]byte(line), r))
	assert.Equal(t, []string{"zeta", "title", "labels", "extra", "alpha"}, r.Keys())

	require.NoError(t, r.Set(FieldCategoryLLM, "bug"))
	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"zeta":1,"title":"Crash on start","labels":["bug"],"extra":{"nested":[1,2]},"alpha":null,"category_llm":"bug"}`,
		string(out))
}

func TestRecordHasDistinguishesNullFromAbsent(t *testing.T) {
	r := New()
	require.NoError(t, json.Unmarshal([]byte(`{"summary":null}`), r))

	assert.True(t, r.Has("summary"))
	assert.False(t, r.Has(FieldCategoryLLM))
	assert.Equal(t, "", r.String("summary"))
}

func TestRecordGetMisshapenFieldIsParseError(t *testing.T) {
	r := New()
	require.NoError(t, json.Unmarshal([]byte(`{"labels":"bug"}`), r))

	var labels []string
	ok, err := r.Get(FieldLabels, &labels)
	assert.True(t, ok)
	require.Error(t, err)
	assert.True(t, apperrors.IsParse(err))
	assert.Nil(t, r.Labels())
}

func TestRecordRejectsNonObject(t *testing.T) {
	r := New()
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), r))
	assert.Error(t, r.UnmarshalJSON([]byte(`{"a":1} {"b":2}`)))
}

func TestRecordDecodeIssue(t *testing.T) {
	r, err := FromValue(map[string]interface{}{
		"issue_number": 42,
		"title":        "Add retries",
		"body_clean":   "please add retries",
		"labels":       []string{"enhancement"},
		"comments": []map[string]string{
			{"author": "octocat", "created_at": "2024-01-01T00:00:00Z", "body_clean": "+1"},
		},
	})
	require.NoError(t, err)

	var issue Issue
	require.NoError(t, r.Decode(&issue))
	assert.Equal(t, 42, issue.IssueNumber)
	assert.Equal(t, []string{"enhancement"}, issue.Labels)
	require.Len(t, issue.Comments, 1)
	assert.Equal(t, "+1", issue.Comments[0].Text())
	assert.Equal(t, 42, r.Int(FieldIssueNumber))
}

func TestRecordDeleteAndClone(t *testing.T) {
	r := New()
	require.NoError(t, r.Set("a", 1))
	require.NoError(t, r.Set("b", 2))

	c := r.Clone()
	r.Delete("a")

	assert.Equal(t, []string{"b"}, r.Keys())
	assert.Equal(t, []string{"a", "b"}, c.Keys())
}

func TestRecordSetKeepsHTMLCharacters(t *testing.T) {
	r := New()
	require.NoError(t, r.Set(FieldSummary, "<b>a & b</b>"))
	require.NoError(t, r.Set("copied", json.RawMessage(`{"x":"<i>"}`)))
	assert.Error(t, r.Set("broken", json.RawMessage(`{"x":`)))

	out, err := r.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"<b>a & b</b>","copied":{"x":"<i>"}}`, string(out))
}
