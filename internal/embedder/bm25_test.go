package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrieval-platform/pkg/types"
)

func TestBM25GenerateBatchScoresRareTermsHigher(t *testing.T) {
	cfg := types.DefaultDatasetConfig()
	embedder := NewBM25Embedder()

	texts := []string{
		"the quick brown fox",
		"the quick brown dog",
		"the lazy cat sleeps",
	}
	vecs := embedder.GenerateBatch(texts, cfg)
	require.Len(t, vecs, 3)

	for _, v := range vecs {
		assert.NotEmpty(t, v.Indices)
		assert.Equal(t, len(v.Indices), len(v.Values))
	}

	// "fox" appears in one document; "the" appears in all three, so
	// fox's score in doc 0 should exceed the common term's weight.
	foxIdx := tokenIndex("fox")
	theIdx := tokenIndex("the")

	var foxScore, theScore float32
	for i, idx := range vecs[0].Indices {
		if idx == foxIdx {
			foxScore = vecs[0].Values[i]
		}
		if idx == theIdx {
			theScore = vecs[0].Values[i]
		}
	}
	assert.Greater(t, foxScore, theScore)
}

func TestBM25EmptyBatch(t *testing.T) {
	embedder := NewBM25Embedder()
	vecs := embedder.GenerateBatch(nil, types.DefaultDatasetConfig())
	assert.Empty(t, vecs)
}

func TestTokenizeLowercasesAndSplits(t *testing.T) {
	terms := tokenize("Hello, World! 123")
	assert.Equal(t, []string{"hello", "world", "123"}, terms)
}
