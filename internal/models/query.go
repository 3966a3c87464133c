package models

import (
	"fmt"
	"unicode/utf8"
)

// Search bounds applied when a query does not override them.
const (
	DefaultTopK       = 5
	MaxTopK           = 50
	MaxQueryLength    = 200
	DefaultListLimit  = 10
	MaxListLimit      = 100
	DefaultAlbumCount = 5
	MaxAlbumSize      = 1000
)

// SearchQuery represents a text search request.
type SearchQuery struct {
	Query string `json:"q"`
	TopK  int    `json:"top_k,omitempty"`
	// Hybrid blends keyword matches on tags and captions into the semantic ranking.
	Hybrid bool `json:"hybrid,omitempty"`
	// Fuzzy enables typo tolerant keyword matching; only used when Hybrid is set.
	Fuzzy bool `json:"fuzzy,omitempty"`
}

// Validate checks the query length and top_k range, defaulting top_k when unset.
// Out of range values are rejected, not clamped.
func (q *SearchQuery) Validate() error {
	n := utf8.RuneCountInString(q.Query)
	if n == 0 {
		return fmt.Errorf("query cannot be empty")
	}
	if n > MaxQueryLength {
		return fmt.Errorf("query must be at most %d characters", MaxQueryLength)
	}
	if q.TopK == 0 {
		q.TopK = DefaultTopK
	}
	if q.TopK < 1 || q.TopK > MaxTopK {
		return fmt.Errorf("top_k must be between 1 and %d", MaxTopK)
	}
	return nil
}

// AlbumQuery represents an album clustering request. Zero counts and a nil threshold fall back
// to configured defaults; a threshold of 0 groups exact duplicates only.
type AlbumQuery struct {
	Strategy          string   `json:"strategy,omitempty"`
	TopK              int      `json:"top_k,omitempty"`
	AlbumSize         int      `json:"album_size,omitempty"`
	DistanceThreshold *float32 `json:"distance_threshold,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
}

// Validate rejects negative and out of range values.
func (q *AlbumQuery) Validate() error {
	if q.TopK < 0 || q.TopK > MaxTopK {
		return fmt.Errorf("top_k must be between 1 and %d", MaxTopK)
	}
	if q.AlbumSize < 0 || q.AlbumSize > MaxAlbumSize {
		return fmt.Errorf("album_size must be between 1 and %d", MaxAlbumSize)
	}
	if q.DistanceThreshold != nil && *q.DistanceThreshold < 0 {
		return fmt.Errorf("distance_threshold must be non-negative")
	}
	return nil
}

// ListQuery is a pagination window over stored photos.
type ListQuery struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// Normalize applies the default limit and caps it.
func (q *ListQuery) Normalize() {
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
}
