package album

import (
	"context"
	"math/rand"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hyperjump/shashin/internal/vector"
)

// GreedyExpansion builds up to TopK albums by visiting photos in random order and gathering
// each unvisited seed's unvisited neighbors within DistanceThreshold. It is a partial cover:
// photos may end up in no album, and two calls usually give different albums.
type GreedyExpansion struct {
	TopK              int
	AlbumSize         int
	DistanceThreshold float32
	// Rand shuffles the seed order. When nil a time-seeded source is used per call.
	Rand *rand.Rand
}

// Name returns the strategy name.
func (g *GreedyExpansion) Name() string {
	return StrategyGreedy
}

func (g *GreedyExpansion) validate() error {
	if g.TopK < 1 {
		return ErrInvalidTopK
	}
	if g.AlbumSize < 1 {
		return ErrInvalidAlbumSize
	}
	if g.DistanceThreshold < 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// Cluster runs one greedy pass over idx. Every neighbor search is made against idx itself, so
// a pass sees one consistent view of the store.
func (g *GreedyExpansion) Cluster(ctx context.Context, idx vector.Index) ([][]int64, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	ids := idx.IDs()
	albums := make([][]int64, 0, g.TopK)
	if len(ids) == 0 {
		return albums, nil
	}

	rng := g.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	visited := roaring64.New()
	for _, seed := range ids {
		if len(albums) == g.TopK {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if visited.Contains(uint64(seed)) {
			continue
		}
		vec, ok := idx.Vector(seed)
		if !ok {
			continue
		}
		matches, err := idx.Search(vec, min(g.AlbumSize, idx.Len()))
		if err != nil {
			return nil, err
		}
		// The seed always leads its album even when identical vectors outrank it.
		album := make([]int64, 0, min(g.AlbumSize, len(matches)+1))
		album = append(album, seed)
		visited.Add(uint64(seed))
		for _, m := range matches {
			if len(album) == g.AlbumSize {
				break
			}
			if m.ID == seed || m.Distance > g.DistanceThreshold || visited.Contains(uint64(m.ID)) {
				continue
			}
			album = append(album, m.ID)
			visited.Add(uint64(m.ID))
		}
		albums = append(albums, album)
	}
	return albums, nil
}
