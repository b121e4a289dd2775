package recordstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
	"github.com/kurihiro0119/github-issue-insights/internal/record"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFreshInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.jsonl")
	writeFile(t, input, "{\"id\":1}\n\n{\"id\":2}\n")

	records, resuming, err := Load(input, filepath.Join(dir, "out.jsonl"))
	require.NoError(t, err)
	assert.False(t, resuming)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[1].Int("id"))
}

func TestLoadResumesFromOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.jsonl")
	output := filepath.Join(dir, "out.jsonl")
	writeFile(t, input, "{\"id\":1}\n{\"id\":2}\n")
	writeFile(t, output, "{\"id\":1,\"category_llm\":\"bug\"}\n{\"id\":2}\n")

	records, resuming, err := Load(input, output)
	require.NoError(t, err)
	assert.True(t, resuming)
	assert.Equal(t, "bug", records[0].String(record.FieldCategoryLLM))
}

func TestLoadMissingInputIsIOError(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Load(filepath.Join(dir, "nope.jsonl"), filepath.Join(dir, "out.jsonl"))
	require.Error(t, err)
	assert.True(t, apperrors.IsIO(err))
}

func TestLoadMalformedLineAbortsWithParseError(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.jsonl")
	writeFile(t, output, "{\"id\":1}\n{\"id\":\n{\"id\":3}\n")

	records, _, err := Load(filepath.Join(dir, "in.jsonl"), output)
	require.Error(t, err)
	assert.True(t, apperrors.IsParse(err))
	assert.Contains(t, err.Error(), "out.jsonl:2")
	assert.Nil(t, records)
}

func TestPersistOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "nested", "out.jsonl")

	first := []*record.Record{record.New()}
	require.NoError(t, first[0].Set("title", "<b>html & text</b>"))
	require.NoError(t, Persist(first, output))

	require.NoError(t, first[0].Set(record.FieldSummary, "done"))
	require.NoError(t, Persist(first, output))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "{\"title\":\"<b>html & text</b>\",\"summary\":\"done\"}\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(output))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestPendingIndicesPreservesOrderAndFilters(t *testing.T) {
	records := make([]*record.Record, 6)
	for i := range records {
		records[i] = record.New()
		require.NoError(t, records[i].Set("id", i))
	}
	require.NoError(t, records[1].Set(record.FieldCategoryLLM, "bug"))
	require.NoError(t, records[3].Set("skip", true))
	require.NoError(t, MarkFailed(records[4], record.FieldCategoryLLM))
	require.NoError(t, MarkFailed(records[4], record.FieldCategoryLLM))

	eligible := func(r *record.Record) bool { return !r.Has("skip") }

	assert.Equal(t, []int{0, 2, 4, 5}, PendingIndices(records, record.FieldCategoryLLM, eligible, 0))
	assert.Equal(t, []int{0, 2, 5}, PendingIndices(records, record.FieldCategoryLLM, eligible, 2))
	assert.Equal(t, 2, Failures(records[4], record.FieldCategoryLLM))

	ClearFailures(records[4], record.FieldCategoryLLM)
	assert.Zero(t, Failures(records[4], record.FieldCategoryLLM))
	assert.Equal(t, 1, CountWith(records, record.FieldCategoryLLM))
}

func TestAppendAndDecodeJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insights.jsonl")
	type row struct {
		N int `json:"n"`
	}
	require.NoError(t, AppendJSONL(path, row{N: 1}))
	require.NoError(t, AppendJSONL(path, row{N: 2}))

	rows, err := DecodeJSONL[row](path)
	require.NoError(t, err)
	assert.Equal(t, []row{{1}, {2}}, rows)
}
