package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"retrieval-platform/pkg/types"
)

func numValue(v float64) *float64 { return &v }

func TestApplySortByNumValueDescending(t *testing.T) {
	results := []types.SearchResult{
		{Chunk: types.Chunk{Content: "low"}, Score: 1},
		{Chunk: types.Chunk{Content: "high", NumValue: numValue(9)}, Score: 1},
		{Chunk: types.Chunk{Content: "mid", NumValue: numValue(5)}, Score: 1},
	}
	applySort(results, types.SortOptions{Strategy: types.SortByNumValue})

	assert.Equal(t, []string{"high", "mid", "low"}, []string{results[0].Chunk.Content, results[1].Chunk.Content, results[2].Chunk.Content})
}

func TestApplySortByRecencyPrefersTimeStampOverCreatedAt(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	older := now.Add(-time.Hour)
	newer := now.Add(time.Hour)

	results := []types.SearchResult{
		{Chunk: types.Chunk{Content: "stale", TimeStamp: &older}},
		{Chunk: types.Chunk{Content: "fresh", TimeStamp: &newer}},
		{Chunk: types.Chunk{Content: "fallback", CreatedAt: now}},
	}
	applySort(results, types.SortOptions{Strategy: types.SortByRecency})

	assert.Equal(t, "fresh", results[0].Chunk.Content)
}

func TestApplySortByGeoDistanceOrdersByProximity(t *testing.T) {
	ref := types.GeoPoint{Lat: 0, Lon: 0}
	near := types.GeoPoint{Lat: 0.01, Lon: 0.01}
	far := types.GeoPoint{Lat: 10, Lon: 10}

	results := []types.SearchResult{
		{Chunk: types.Chunk{Content: "far", Location: &far}},
		{Chunk: types.Chunk{Content: "near", Location: &near}},
		{Chunk: types.Chunk{Content: "unknown"}},
	}
	applySort(results, types.SortOptions{Strategy: types.SortByGeoDistance, GeoReference: &ref})

	assert.Equal(t, []string{"near", "far", "unknown"}, []string{results[0].Chunk.Content, results[1].Chunk.Content, results[2].Chunk.Content})
}
