package bktree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	tree := New()
	for _, w := range []string{"hello", "hallo", "help", "world", "word", "words"} {
		tree.Insert(w)
	}

	data, err := tree.Marshal()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, tree.Size(), restored.Size())

	for _, w := range []string{"hello", "hallo", "help", "world", "word", "words"} {
		found := restored.Find(w, 0)
		if assert.Len(t, found, 1) {
			assert.Equal(t, w, found[0].Word)
		}
	}
}

func TestMarshalEmptyTree(t *testing.T) {
	tree := New()
	data, err := tree.Marshal()
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.Size())
}
