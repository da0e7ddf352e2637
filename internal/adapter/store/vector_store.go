package store

import (
	"math"
	"sort"
	"strings"

	"finrag/internal/domain"
	"finrag/internal/port"
)

// CosineDistance returns 1 - cos(a, b). A zero vector, or vectors of
// different length, are treated as orthogonal to everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dotProduct/(math.Sqrt(normA)*math.Sqrt(normB))
}

// MatchesFilter reports whether a stored document passes filter.
func MatchesFilter(document string, filter domain.Filter) bool {
	return filter.Contains == "" || strings.Contains(document, filter.Contains)
}

// TopK sorts results by ascending distance, breaking ties by id, and keeps
// at most k of them.
func TopK(results []port.VectorResult, k int) []port.VectorResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if k < 0 {
		k = 0
	}
	if k < len(results) {
		results = results[:k]
	}
	return results
}
