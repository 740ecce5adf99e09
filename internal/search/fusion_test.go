package search

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"retrieval-platform/pkg/types"
)

func TestFuseRRFRewardsAgreementAcrossBranches(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()

	branches := []BranchResult{
		{Mode: types.SearchSemantic, Hits: []types.ScoredChunk{{ChunkID: a}, {ChunkID: b}, {ChunkID: c}}},
		{Mode: types.SearchFulltext, Hits: []types.ScoredChunk{{ChunkID: b}, {ChunkID: a}}},
	}

	fused := FuseRRF(branches, DefaultRRFConstant)
	require := assert.New(t)
	require.Len(fused, 3)
	// b ranks 2nd and 1st (sum of two branches) vs a ranks 1st and 2nd:
	// identical rank sum, so order between a and b is a tiebreak; both
	// must out-score c, which appears in only one branch.
	scoreOf := func(id uuid.UUID) float64 {
		for _, f := range fused {
			if f.ChunkID == id {
				return float64(f.Score)
			}
		}
		t.Fatalf("chunk %s missing from fused results", id)
		return 0
	}
	assert.Greater(t, scoreOf(a), scoreOf(c))
	assert.Greater(t, scoreOf(b), scoreOf(c))
}

func TestFuseRRFEmptyBranches(t *testing.T) {
	assert.Empty(t, FuseRRF(nil, 0))
}

func TestFuseRRFDefaultsKWhenNonPositive(t *testing.T) {
	id := uuid.New()
	branches := []BranchResult{{Mode: types.SearchSemantic, Hits: []types.ScoredChunk{{ChunkID: id}}}}
	withZero := FuseRRF(branches, 0)
	withDefault := FuseRRF(branches, DefaultRRFConstant)
	assert.Equal(t, withDefault[0].Score, withZero[0].Score)
}
