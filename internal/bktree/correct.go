package bktree

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// TypoRange is an inclusive range of word lengths; maxDistanceFor
// gives a word the edit-distance budget of the range its own length
// falls in.
type TypoRange struct {
	Min int
	Max *int // nil means unbounded
}

var (
	twoTypoRange    = TypoRange{Min: 8, Max: nil}
	singleTypoRange = TypoRange{Min: 3, Max: intPtr(7)}
)

func intPtr(v int) *int { return &v }

func inRange(n int, r TypoRange) bool {
	return n >= r.Min && (r.Max == nil || n <= *r.Max)
}

// maxDistanceFor returns the edit-distance budget for a word of the
// given length: words short of every range are left alone (a typo
// budget on a 1-2 character word would rewrite it into something
// unrelated), words in singleTypoRange tolerate one typo, and words in
// twoTypoRange tolerate two.
func maxDistanceFor(wordLen int) int {
	switch {
	case inRange(wordLen, twoTypoRange):
		return 2
	case inRange(wordLen, singleTypoRange):
		return 1
	default:
		return 0
	}
}

// isSimilarEnough filters a BK-tree candidate beyond raw edit
// distance: the lengths must be close, the first three characters
// must match (typos rarely hit the start of a word), and the
// character sets must overlap substantially.
func isSimilarEnough(word, candidate string) bool {
	if absInt(len(word)-len(candidate)) > 2 {
		return false
	}
	prefixLen := 3
	if len(word) < prefixLen || len(candidate) < prefixLen {
		prefixLen = minInt(len(word), len(candidate))
	}
	if word[:prefixLen] != candidate[:prefixLen] {
		return false
	}
	return jaccardChars(word, candidate) >= 0.7
}

func jaccardChars(a, b string) float64 {
	setA := map[rune]bool{}
	for _, r := range a {
		setA[r] = true
	}
	setB := map[rune]bool{}
	for _, r := range b {
		setB[r] = true
	}
	inter := 0
	for r := range setA {
		if setB[r] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// CorrectQuery attempts to fix typos in query against the dataset's
// dictionary tree. disable lists words that should never be
// corrected (dataset-specific jargon, for instance). It returns the
// corrected query and true if any word was replaced; it returns the
// original query unchanged and false on a cache miss, after starting
// a background load of the tree from Redis, matching the source
// system's choice to never block a search waiting on a cache refill.
func CorrectQuery(ctx context.Context, cache *Cache, datasetID uuid.UUID, query string, disable map[string]bool) (string, bool) {
	tree, ok := cache.getIfValid(datasetID)
	if !ok {
		go func() { _, _ = cache.Get(context.WithoutCancel(ctx), datasetID) }()
		return query, false
	}

	corrected := query
	replaced := false
	for _, word := range strings.Fields(query) {
		lower := strings.ToLower(word)
		if disable[lower] {
			continue
		}
		maxDist := maxDistanceFor(len(lower))
		if maxDist == 0 {
			continue
		}
		candidates := tree.Find(lower, maxDist)
		best := bestCandidate(lower, candidates)
		if best == "" || best == lower {
			continue
		}
		corrected = strings.Replace(corrected, word, best, 1)
		replaced = true
	}
	return corrected, replaced
}

func bestCandidate(word string, candidates []Candidate) string {
	maxDist := maxDistanceFor(len(word))
	bestScore := -1
	best := ""
	for _, c := range candidates {
		if c.Distance == 0 {
			return ""
		}
		if !isSimilarEnough(word, c.Word) {
			continue
		}
		score := (maxDist-c.Distance)*1000 + c.Count
		if score > bestScore {
			bestScore = score
			best = c.Word
		}
	}
	return best
}
