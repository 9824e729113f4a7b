// Package ragdedup implements the periodic entity deduplication engine
// (SPEC_FULL.md §4.5): candidate enumeration by embedding cosine
// similarity, a substring/Levenshtein text-distance gate, cluster
// formation, primary selection, and merge via GraphStore.MergeEntities,
// with self-healing embedding regeneration for entities that come out of
// a merge with no vector. Grounded on
// original_source/app/services/deduplication/entity_deduplication.py,
// the algorithm of record; text-distance gating uses
// github.com/antzucaro/matchr, as MrWong99-glyphoxa's phonetic matcher
// does for its own Jaro-Winkler/Levenshtein string comparisons.
package ragdedup

import (
	"math"
	"strings"

	"github.com/antzucaro/matchr"
)

// cosineSimilarity returns the cosine similarity of a and b, or 0 if
// either is empty or their dimensions differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// textDistanceMatch reports whether a and b are close enough by name to be
// considered the same entity: one contains the other (case-insensitive),
// or their Levenshtein distance is at most maxDistance.
func textDistanceMatch(a, b string, maxDistance int) bool {
	al, bl := strings.ToLower(a), strings.ToLower(b)
	if al == bl {
		return true
	}
	if strings.Contains(al, bl) || strings.Contains(bl, al) {
		return true
	}
	return matchr.Levenshtein(al, bl) <= maxDistance
}
