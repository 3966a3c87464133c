// Package keyword provides keyword search over photo tags, captions and descriptions.
package keyword

import (
	"context"

	"github.com/hyperjump/shashin/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TagBoost multiplies the score contribution from matches in the tags field.
	// Values > 1 make tag matches outrank caption and description matches. Use 1.0 for no boost.
	TagBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 1 when FuzzyEnabled is true; tags are short words.
	Fuzziness int
}

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	Index(ctx context.Context, photo *models.Photo) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, id int64) error
	// DocCount returns the total number of photos in the index.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	PhotoID int64
	Score   float64
}
