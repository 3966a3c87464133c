package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidID is returned when a photo ID is not a positive integer.
	ErrInvalidID = errors.New("photo id must be positive")
	// ErrInvalidK is returned when a search asks for fewer than one neighbor.
	ErrInvalidK = errors.New("k must be at least 1")
	// ErrInvalidDistance is returned for a negative distance cutoff.
	ErrInvalidDistance = errors.New("max distance must be non-negative")
	// ErrInvalidVector is returned when a vector contains NaN or Inf components.
	ErrInvalidVector = errors.New("vector contains NaN or Inf")
	// ErrNotFound is returned when no vector is stored for a photo ID.
	ErrNotFound = errors.New("vector not found")

	errSidecarMismatch = errors.New("id sidecar lists different ids than the index save it names")
)

// DimensionMismatchError reports a vector whose length differs from the store dimension.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: got %d, expected %d", e.Got, e.Want)
}

// CorruptStoreError reports an index file pair that exists but cannot be parsed.
// The store never replaces such files with an empty index.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt vector store %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Err
}

func corrupt(path string, format string, args ...any) error {
	return &CorruptStoreError{Path: path, Err: fmt.Errorf(format, args...)}
}
