package embedder

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"retrieval-platform/pkg/types"
)

// BM25Embedder turns chunk text into Okapi BM25 sparse vectors using
// the dataset's configured b/k1 parameters and average document
// length. Unlike the dense and sparse embedders it makes no network
// call: term statistics are derived from the batch being ingested,
// which the corpus-wide average length configured on the dataset
// keeps consistent across ingestion batches over time.
type BM25Embedder struct{}

// NewBM25Embedder constructs a BM25Embedder.
func NewBM25Embedder() *BM25Embedder { return &BM25Embedder{} }

// GenerateBatch tokenizes every text, computes corpus-wide document
// frequencies over the batch, and scores each document's terms with
// the Okapi BM25 formula:
//
//	score(t, d) = idf(t) * (tf(t,d) * (k1+1)) / (tf(t,d) + k1 * (1 - b + b * |d|/avgdl))
func (e *BM25Embedder) GenerateBatch(texts []string, cfg types.DatasetConfig) []*types.SparseVector {
	docs := make([][]string, len(texts))
	docFreq := map[string]int{}
	for i, text := range texts {
		terms := tokenize(text)
		docs[i] = terms
		seen := map[string]bool{}
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				docFreq[t]++
			}
		}
	}

	n := float64(len(texts))
	avgdl := cfg.BM25AvgLen
	if avgdl <= 0 {
		avgdl = averageLen(docs)
	}
	b := cfg.BM25B
	k1 := cfg.BM25K

	out := make([]*types.SparseVector, len(texts))
	for i, terms := range docs {
		tf := map[string]int{}
		for _, t := range terms {
			tf[t]++
		}
		dl := float64(len(terms))
		indices := make([]uint32, 0, len(tf))
		values := make([]float32, 0, len(tf))
		for term, freq := range tf {
			df := float64(docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			denom := float64(freq) + k1*(1-b+b*dl/avgdl)
			score := idf * (float64(freq) * (k1 + 1)) / denom
			if score <= 0 {
				continue
			}
			indices = append(indices, tokenIndex(term))
			values = append(values, float32(score))
		}
		out[i] = &types.SparseVector{Indices: indices, Values: values}
	}
	return out
}

func averageLen(docs [][]string) float64 {
	if len(docs) == 0 {
		return 1
	}
	total := 0
	for _, d := range docs {
		total += len(d)
	}
	avg := float64(total) / float64(len(docs))
	if avg == 0 {
		return 1
	}
	return avg
}

// tokenize lowercases and splits on non-letter/non-digit runs, the
// same coarse tokenization the typo-correction BK-tree builds its
// dictionary from, so BM25 and fuzzy correction agree on what a
// "word" is.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenIndex maps a term to a stable sparse-vector dimension via a
// 32-bit hash. Collisions are accepted the way SPLADE's own
// vocabulary hashing accepts them: rare and tolerable at the scale of
// a single dataset's vocabulary.
func tokenIndex(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return h.Sum32()
}
