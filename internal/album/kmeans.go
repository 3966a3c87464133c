package album

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/hyperjump/shashin/internal/vector"
)

// DefaultMaxIterations bounds Lloyd iterations when KMeans.MaxIterations is zero.
const DefaultMaxIterations = 20

// KMeans partitions every stored photo into at most TopK albums with Lloyd's algorithm.
// Points are ordered by photo ID and all randomness comes from Seed, so equal stored sets
// and seeds give equal albums.
type KMeans struct {
	TopK          int
	Seed          int64
	MaxIterations int
}

// Name returns the strategy name.
func (k *KMeans) Name() string {
	return StrategyKMeans
}

func (k *KMeans) validate() error {
	if k.TopK < 1 {
		return ErrInvalidTopK
	}
	return nil
}

// Cluster returns no albums when fewer than TopK photos are stored. Otherwise every photo is in
// exactly one album; clusters left empty after the final assignment are dropped.
func (k *KMeans) Cluster(ctx context.Context, idx vector.Index) ([][]int64, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	ids := idx.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	n := len(ids)
	if n == 0 || n < k.TopK {
		return [][]int64{}, nil
	}

	dim := idx.Dim()
	points := make([]float32, 0, n*dim)
	for _, id := range ids {
		v, ok := idx.Vector(id)
		if !ok {
			return nil, vector.ErrNotFound
		}
		points = append(points, v...)
	}

	maxIter := k.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	rng := rand.New(rand.NewSource(k.Seed))
	centroids, err := trainKMeans(ctx, points, dim, k.TopK, maxIter, rng)
	if err != nil {
		return nil, err
	}

	groups := make([][]int64, k.TopK)
	for i, id := range ids {
		c := nearestCentroid(points[i*dim:(i+1)*dim], centroids, dim)
		groups[c] = append(groups[c], id)
	}
	albums := make([][]int64, 0, k.TopK)
	for _, g := range groups {
		if len(g) > 0 {
			albums = append(albums, g)
		}
	}
	return albums, nil
}

// trainKMeans returns k flattened centroids (k*dim). Centroids start at k distinct points
// drawn from rng; a cluster that loses all points is reseeded with a random point.
func trainKMeans(ctx context.Context, points []float32, dim, k, maxIter int, rng *rand.Rand) ([]float32, error) {
	n := len(points) / dim
	centroids := make([]float32, k*dim)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids[i*dim:(i+1)*dim], points[perm[i]*dim:(perm[i]+1)*dim])
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)
	sums := make([]float32, k*dim)

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed := false
		for i := 0; i < n; i++ {
			c := nearestCentroid(points[i*dim:(i+1)*dim], centroids, dim)
			if assignments[i] != c {
				assignments[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}
		for i := 0; i < n; i++ {
			c := assignments[i]
			vec := points[i*dim : (i+1)*dim]
			for d := 0; d < dim; d++ {
				sums[c*dim+d] += vec[d]
			}
			counts[c]++
		}
		for j := 0; j < k; j++ {
			if counts[j] > 0 {
				scale := 1 / float32(counts[j])
				for d := 0; d < dim; d++ {
					centroids[j*dim+d] = sums[j*dim+d] * scale
				}
				continue
			}
			p := rng.Intn(n)
			copy(centroids[j*dim:(j+1)*dim], points[p*dim:(p+1)*dim])
		}
	}
	return centroids, nil
}

// nearestCentroid returns the index of the closest centroid; ties go to the lowest index.
func nearestCentroid(vec, centroids []float32, dim int) int {
	best := 0
	bestDist := float32(math.MaxFloat32)
	for j := 0; j < len(centroids)/dim; j++ {
		d := vector.SquaredL2(vec, centroids[j*dim:(j+1)*dim])
		if d < bestDist {
			bestDist = d
			best = j
		}
	}
	return best
}
