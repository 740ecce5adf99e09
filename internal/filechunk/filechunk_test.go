package filechunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitOnHeadingBoundaries(t *testing.T) {
	text := "# Intro\nhello world\n\n# Next\nmore content here"
	segments := Split(text, 0)
	assert.Len(t, segments, 2)
	assert.Contains(t, segments[0], "Intro")
	assert.Contains(t, segments[1], "Next")
}

func TestSplitEnforcesMaxLength(t *testing.T) {
	lines := make([]string, 200)
	for i := range lines {
		lines[i] = "a line of sample text"
	}
	text := strings.Join(lines, "\n")
	segments := Split(text, 100)
	assert.True(t, len(segments) > 1)
	for _, s := range segments {
		assert.LessOrEqual(t, len(s), 130) // a little slack for the line that tips it over
	}
}

func TestSplitEmptyText(t *testing.T) {
	assert.Empty(t, Split("", 0))
}

func TestSplitNoBoundaries(t *testing.T) {
	segments := Split("just one short paragraph of text", 0)
	assert.Len(t, segments, 1)
}
