// Package album groups stored photo embeddings into albums of similar photos.
package album

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/hyperjump/shashin/internal/vector"
)

// Strategy names accepted by New.
const (
	StrategyGreedy = "greedy"
	StrategyKMeans = "kmeans"
)

var (
	ErrInvalidTopK      = errors.New("top_k must be at least 1")
	ErrInvalidAlbumSize = errors.New("album_size must be at least 1")
	ErrInvalidThreshold = errors.New("distance_threshold must be non-negative")
)

// Clusterer turns an index snapshot into albums. Each album is a non-empty list of photo IDs.
type Clusterer interface {
	Name() string
	Cluster(ctx context.Context, idx vector.Index) ([][]int64, error)
}

// Source provides a fresh snapshot of the stored vectors. *vector.Store implements it.
type Source interface {
	Snapshot(ctx context.Context) (vector.Index, error)
}

// Options selects and parameterizes a strategy.
type Options struct {
	Strategy          string
	TopK              int
	AlbumSize         int     // greedy only
	DistanceThreshold float32 // greedy only, squared L2
	Rand              *rand.Rand
	Seed              int64 // kmeans only
	MaxIterations     int   // kmeans only
}

// New returns the clusterer named by opts.Strategy. An empty strategy selects greedy.
func New(opts Options) (Clusterer, error) {
	switch opts.Strategy {
	case StrategyGreedy, "":
		g := &GreedyExpansion{
			TopK:              opts.TopK,
			AlbumSize:         opts.AlbumSize,
			DistanceThreshold: opts.DistanceThreshold,
			Rand:              opts.Rand,
		}
		if err := g.validate(); err != nil {
			return nil, err
		}
		return g, nil
	case StrategyKMeans:
		k := &KMeans{TopK: opts.TopK, Seed: opts.Seed, MaxIterations: opts.MaxIterations}
		if err := k.validate(); err != nil {
			return nil, err
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown album strategy: %s (supported: %s, %s)", opts.Strategy, StrategyGreedy, StrategyKMeans)
	}
}

// Result is the outcome of one clustering pass together with the snapshot it ran against,
// so callers can measure distances inside an album without reloading the store.
type Result struct {
	Albums   [][]int64
	Snapshot vector.Index
}

// Run snapshots src once and clusters the snapshot.
func Run(ctx context.Context, src Source, c Clusterer) (*Result, error) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot vectors: %w", err)
	}
	albums, err := c.Cluster(ctx, snap)
	if err != nil {
		return nil, err
	}
	return &Result{Albums: albums, Snapshot: snap}, nil
}
