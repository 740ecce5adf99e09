package search

import (
	"math"
	"sort"
	"time"

	"retrieval-platform/pkg/types"
)

// applySort implements SearchEngine step 5's sort_options: the
// default is descending fused/rerank score (already the incoming
// order), with recency, num_value, and geo-distance alternatives.
// Results with no num_value or no location sort to the end rather
// than panic or compare as zero; recency falls back to ingestion time
// (CreatedAt) for results with no timestamp.
func applySort(results []types.SearchResult, opts types.SortOptions) {
	switch opts.Strategy {
	case types.SortByRecency:
		sort.SliceStable(results, func(i, j int) bool {
			return chunkTime(results[i].Chunk).After(chunkTime(results[j].Chunk))
		})
	case types.SortByNumValue:
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i].Chunk.NumValue, results[j].Chunk.NumValue
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return *a > *b
		})
	case types.SortByGeoDistance:
		if opts.GeoReference == nil {
			return
		}
		ref := *opts.GeoReference
		sort.SliceStable(results, func(i, j int) bool {
			a, aok := results[i].Chunk.Location, results[i].Chunk.Location != nil
			b, bok := results[j].Chunk.Location, results[j].Chunk.Location != nil
			if !aok {
				return false
			}
			if !bok {
				return true
			}
			return haversineKm(ref, *a) < haversineKm(ref, *b)
		})
	default:
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	}
}

// chunkTime is the timestamp recency sort compares on: the caller's
// explicit TimeStamp when set, otherwise ingestion time.
func chunkTime(c types.Chunk) time.Time {
	if c.TimeStamp != nil {
		return *c.TimeStamp
	}
	return c.CreatedAt
}

func haversineKm(a, b types.GeoPoint) float64 {
	const earthRadiusKm = 6371.0
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
