package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"retrieval-platform/pkg/types"
)

func TestParseQueryExtractsQuotedPhraseAndNegation(t *testing.T) {
	pq := parseQuery(`golang "error handling" -deprecated`, true, false)
	assert.Equal(t, []string{"error handling"}, pq.Required)
	assert.Equal(t, []string{"deprecated"}, pq.Negated)
	assert.Equal(t, "golang", pq.Text)
}

func TestParseQueryRemovesStopWordsUnlessEmptying(t *testing.T) {
	pq := parseQuery("the quick brown fox", false, true)
	assert.Equal(t, "quick brown fox", pq.Text)

	pq = parseQuery("the", false, true)
	assert.Equal(t, "the", pq.Text, "stripping every word would empty the query, so it must fall back")
}

func TestParseQueryLeavesQueryUntouchedWhenOptionsOff(t *testing.T) {
	pq := parseQuery(`"quoted" -negated the`, false, false)
	assert.Equal(t, `"quoted" -negated the`, pq.Text)
	assert.Empty(t, pq.Required)
	assert.Empty(t, pq.Negated)
}

func TestFilterRequiredNegated(t *testing.T) {
	results := []types.SearchResult{
		{Chunk: types.Chunk{Content: "golang error handling guide"}},
		{Chunk: types.Chunk{Content: "python error handling guide"}},
		{Chunk: types.Chunk{Content: "golang deprecated api notes"}},
	}

	filtered := filterRequiredNegated(results, []string{"golang"}, []string{"deprecated"})
	assert.Len(t, filtered, 1)
	assert.Equal(t, "golang error handling guide", filtered[0].Chunk.Content)
}
