// Package search implements the hybrid query engine: fan out across
// the semantic, fulltext, and BM25 branches a dataset has enabled,
// fuse their rankings with Reciprocal Rank Fusion, optionally rerank
// the fused top results with a cross-encoder, and hydrate chunks from
// the metastore. Typo correction runs ahead of the fan-out via the
// dataset's BK-tree.
package search

import (
	"sort"

	"github.com/google/uuid"

	"retrieval-platform/pkg/types"
)

// DefaultRRFConstant is the standard RRF smoothing constant (k=60),
// the same value search systems across the ecosystem converge on.
const DefaultRRFConstant = 60

// BranchResult is one search branch's ranked hits, keyed by the
// branch's SearchMode for score-tracking after fusion.
type BranchResult struct {
	Mode  types.SearchMode
	Hits  []types.ScoredChunk
}

// fused accumulates each chunk's RRF score across every branch it
// appeared in.
type fused struct {
	chunkID uuid.UUID
	score   float64
	inAll   int
}

// FuseRRF combines ranked hit lists from multiple branches into a
// single ranking via Reciprocal Rank Fusion:
//
//	score(d) = sum over branches of 1 / (k + rank_i(d))
//
// A chunk absent from a branch simply contributes nothing from it,
// rather than a penalty term — appearing in more branches can only
// help a chunk's score, never hurt it.
func FuseRRF(branches []BranchResult, k int) []types.ScoredChunk {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	scores := map[uuid.UUID]*fused{}
	for _, branch := range branches {
		for rank, hit := range branch.Hits {
			f, ok := scores[hit.ChunkID]
			if !ok {
				f = &fused{chunkID: hit.ChunkID}
				scores[hit.ChunkID] = f
			}
			f.score += 1.0 / float64(k+rank+1)
			f.inAll++
		}
	}

	out := make([]types.ScoredChunk, 0, len(scores))
	for _, f := range scores {
		out = append(out, types.ScoredChunk{ChunkID: f.chunkID, Score: float32(f.score)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID.String() < out[j].ChunkID.String()
	})
	return out
}
