package bktree

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, LevenshteinDistance("hello", "hello"))
	assert.Equal(t, 1, LevenshteinDistance("hello", "hallo"))
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 0, LevenshteinDistance("HELLO", "hello"))
}

func TestTreeInsertAndFind(t *testing.T) {
	tree := New()
	for _, w := range []string{"hello", "hallo", "help", "world", "word"} {
		tree.Insert(w)
	}
	assert.Equal(t, 5, tree.Size())

	found := tree.Find("hello", 1)
	var words []string
	for _, c := range found {
		words = append(words, c.Word)
	}
	assert.Contains(t, words, "hello")
	assert.Contains(t, words, "hallo")
	assert.NotContains(t, words, "world")
}

func TestTreeInsertBumpsExistingCount(t *testing.T) {
	tree := New()
	tree.Insert("hello")
	tree.Insert("hello")
	tree.Insert("hello")
	assert.Equal(t, 1, tree.Size())

	found := tree.Find("hello", 0)
	if assert.Len(t, found, 1) {
		assert.Equal(t, 3, found[0].Count)
	}
}

func TestFindOrdersByDistanceThenCount(t *testing.T) {
	tree := New()
	tree.Insert("cat")
	tree.Insert("bat")
	tree.Insert("bat")
	tree.Insert("cot")

	found := tree.Find("cat", 2)
	assert.True(t, len(found) >= 2)
	for i := 1; i < len(found); i++ {
		assert.True(t, found[i-1].Distance <= found[i].Distance)
		if found[i-1].Distance == found[i].Distance {
			assert.True(t, found[i-1].Count >= found[i].Count)
		}
	}
}

func TestFindOnEmptyTree(t *testing.T) {
	tree := New()
	assert.Empty(t, tree.Find("anything", 5))
}
