package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepository(t *testing.T) {
	repo, err := ParseRepository(" langchain-ai/langchain ")
	require.NoError(t, err)
	assert.Equal(t, Repository{Owner: "langchain-ai", Name: "langchain"}, repo)
	assert.Equal(t, "langchain-ai/langchain", repo.String())

	for _, bad := range []string{"", "langchain", "/x", "x/", "a/b/c"} {
		_, err := ParseRepository(bad)
		assert.Error(t, err, bad)
	}
}
