package search

import (
	"testing"

	"github.com/hyperjump/shashin/internal/keyword"
	"github.com/hyperjump/shashin/internal/models"
)

func TestNormalizeKeywordScores(t *testing.T) {
	results := []*keyword.KeywordResult{
		{PhotoID: 1, Score: 2},
		{PhotoID: 2, Score: 4},
		{PhotoID: 3, Score: 1},
	}
	m := NormalizeKeywordScores(results)
	if m[2] != 1.0 {
		t.Errorf("max score should be 1.0, got %f", m[2])
	}
	if m[1] != 0.5 {
		t.Errorf("photo 1 should be 0.5, got %f", m[1])
	}
	if len(m) != 3 {
		t.Errorf("expected 3 entries, got %d", len(m))
	}
}

func TestSemanticScore(t *testing.T) {
	tests := []struct {
		distance float32
		want     float64
	}{
		{0, 1},
		{1, 0.5},
		{2, 0},
		{4, 0},
	}
	for _, tt := range tests {
		if got := SemanticScore(tt.distance); got != tt.want {
			t.Errorf("SemanticScore(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}

func TestFuse(t *testing.T) {
	kw := map[int64]float64{1: 1.0, 2: 0.5, 9: 1.0}
	distances := map[int64]float32{1: 1.0, 2: 0, 3: 1.0}
	results := Fuse(kw, distances, 0.5, 0.5)
	if len(results) != 3 {
		t.Fatalf("expected 3 results (photo 9 has no distance), got %d", len(results))
	}
	// 2: 0.25+0.5, 1: 0.5+0.25 tie broken by distance; 3: 0.25.
	if results[0].PhotoID != 2 || results[1].PhotoID != 1 || results[2].PhotoID != 3 {
		t.Errorf("order = [%d %d %d], want [2 1 3]", results[0].PhotoID, results[1].PhotoID, results[2].PhotoID)
	}
}

func TestSummarize(t *testing.T) {
	photos := []*models.Photo{
		{Tags: []string{"beach", "sunset"}},
		{Tags: []string{"beach", "dog"}},
		{Tags: []string{"dog", "ball", "beach"}},
	}
	if got := Summarize(photos); got != "3 photos: beach, dog, ball" {
		t.Errorf("Summarize = %q", got)
	}
	if got := Summarize([]*models.Photo{{Caption: "A quiet street"}}); got != "1 photo: A quiet street" {
		t.Errorf("Summarize = %q", got)
	}
	if got := Summarize(nil); got != "" {
		t.Errorf("Summarize(nil) = %q", got)
	}
}
