// ABOUTME: Similarity ranking engine over labeled embedding sets
// ABOUTME: Cosine scoring, threshold scan with context windows, multi-set top-k
package core

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cevr/bible-tools/internal/models"
)

// contextRadius is the number of positional neighbors included on each side
// of a match when context expansion is enabled.
const contextRadius = 1

// DimensionMismatchError reports an attempt to compare vectors of unequal
// length. Callers scanning a set treat it as a per-item skip.
type DimensionMismatchError struct {
	LenA int
	LenB int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: %d vs %d", e.LenA, e.LenB)
}

// IsDimensionMismatch reports whether err is a dimension mismatch.
func IsDimensionMismatch(err error) bool {
	var dm *DimensionMismatchError
	return errors.As(err, &dm)
}

// CosineSimilarity returns the cosine similarity of a and b, in [-1, 1].
func CosineSimilarity(a, b models.Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{LenA: len(a), LenB: len(b)}
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// FindSimilarities scans an ordered embedding set and emits a hit for every
// candidate whose similarity to query clears threshold. Candidates whose
// vectors do not match the query's dimension are skipped; corpora may mix
// dimensionalities across schema versions. Hits stream in candidate order.
//
// When includeContext is true, each hit carries the contiguous window of up
// to one neighbor on each side, clipped at the set boundaries. Vectors are
// stripped from the returned passages.
func FindSimilarities(query models.Embedding, set []models.LabeledEmbedding, threshold float64, includeContext bool) []models.SimilarityHit {
	var hits []models.SimilarityHit

	for i := range set {
		score, err := CosineSimilarity(query, set[i].Embedding)
		if err != nil {
			continue
		}
		if score < threshold {
			continue
		}

		var result []models.Passage
		if includeContext {
			for _, le := range contextWindow(set, i, contextRadius) {
				result = append(result, le.Passage())
			}
		} else {
			result = []models.Passage{set[i].Passage()}
		}

		hits = append(hits, models.SimilarityHit{Result: result, Score: score})
	}

	return hits
}

// contextWindow returns the slice of set around index, extending radius
// entries on each side and clipping at the set boundaries. It never crosses
// into another set because it only ever sees one.
func contextWindow(set []models.LabeledEmbedding, index, radius int) []models.LabeledEmbedding {
	start := index - radius
	if start < 0 {
		start = 0
	}
	end := index + radius + 1
	if end > len(set) {
		end = len(set)
	}
	return set[start:end]
}

// CompareEmbeddingToMultipleSets ranks query against every set independently,
// merges all hits, and returns the flattened passages of the k best. Sorting
// is stable and strictly by score, so equal scores keep their encounter
// order. Context windows are expanded inline, in hit order.
func CompareEmbeddingToMultipleSets(query models.Embedding, sets [][]models.LabeledEmbedding, threshold float64, k int) []models.Passage {
	var hits []models.SimilarityHit
	for _, set := range sets {
		hits = append(hits, FindSimilarities(query, set, threshold, true)...)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k < 0 {
		k = 0
	}
	if len(hits) > k {
		hits = hits[:k]
	}

	var passages []models.Passage
	for _, hit := range hits {
		passages = append(passages, hit.Result...)
	}
	return passages
}
