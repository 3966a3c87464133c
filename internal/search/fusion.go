package search

import (
	"sort"

	"github.com/hyperjump/shashin/internal/keyword"
)

// FusedResult holds a photo ID with its fused keyword and semantic scores.
type FusedResult struct {
	PhotoID       int64
	Score         float64
	KeywordScore  float64
	SemanticScore float64
	Distance      float32
}

// SemanticScore maps a squared L2 distance between unit vectors (0..4) to their cosine
// similarity, clamped at 0.
func SemanticScore(distance float32) float64 {
	s := 1 - float64(distance)/2
	if s < 0 {
		return 0
	}
	return s
}

// NormalizeKeywordScores normalizes keyword scores to [0,1] by max.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[int64]float64 {
	normalized := make(map[int64]float64, len(results))
	if len(results) == 0 {
		return normalized
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.PhotoID] = r.Score / maxScore
		} else {
			normalized[r.PhotoID] = 0
		}
	}
	return normalized
}

// Fuse merges keyword scores with semantic distances. Only photos with a known distance take
// part; a photo found by keywords alone keeps its distance but may lie beyond the semantic
// threshold. Results are ordered by fused score, then distance, then photo ID.
func Fuse(keywordScores map[int64]float64, distances map[int64]float32, keywordWeight, semanticWeight float64) []*FusedResult {
	results := make([]*FusedResult, 0, len(distances))
	for id, d := range distances {
		r := &FusedResult{
			PhotoID:       id,
			KeywordScore:  keywordScores[id],
			SemanticScore: SemanticScore(d),
			Distance:      d,
		}
		r.Score = keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].PhotoID < results[j].PhotoID
	})
	return results
}
