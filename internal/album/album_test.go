package album

import (
	"context"
	"math/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/hyperjump/shashin/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t testing.TB, dim int) *vector.FlatIndex {
	t.Helper()
	idx, err := vector.NewFlatIndex(dim)
	require.NoError(t, err)
	return idx
}

// twoGroups returns an index with ids 1..5 near the x axis and ids 6..10 near the y axis.
func twoGroups(t *testing.T) *vector.FlatIndex {
	t.Helper()
	idx := newIndex(t, 2)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, idx.Add(i, []float32{1, float32(i) * 0.01}))
		require.NoError(t, idx.Add(i+5, []float32{float32(i) * 0.01, 1}))
	}
	return idx
}

func randomIndex(t testing.TB, n, dim int, seed int64) *vector.FlatIndex {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	idx := newIndex(t, dim)
	for i := 1; i <= n; i++ {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rng.Float32()
		}
		require.NoError(t, idx.Add(int64(i), v))
	}
	return idx
}

func TestNew(t *testing.T) {
	c, err := New(Options{TopK: 3, AlbumSize: 5, DistanceThreshold: 0.3})
	require.NoError(t, err)
	assert.Equal(t, StrategyGreedy, c.Name())

	c, err = New(Options{Strategy: StrategyKMeans, TopK: 3})
	require.NoError(t, err)
	assert.Equal(t, StrategyKMeans, c.Name())

	_, err = New(Options{Strategy: "dbscan", TopK: 3})
	assert.Error(t, err)

	_, err = New(Options{TopK: 0, AlbumSize: 5})
	assert.ErrorIs(t, err, ErrInvalidTopK)
	_, err = New(Options{TopK: 1, AlbumSize: 0})
	assert.ErrorIs(t, err, ErrInvalidAlbumSize)
	_, err = New(Options{TopK: 1, AlbumSize: 1, DistanceThreshold: -1})
	assert.ErrorIs(t, err, ErrInvalidThreshold)
	_, err = New(Options{Strategy: StrategyKMeans})
	assert.ErrorIs(t, err, ErrInvalidTopK)
}

func TestRun_UsesStoreSnapshot(t *testing.T) {
	ctx := context.Background()
	s, err := vector.Open(filepath.Join(t.TempDir(), "photos.idx"), 2)
	require.NoError(t, err)
	for i := int64(1); i <= 4; i++ {
		require.NoError(t, s.Add(ctx, i, []float32{1, float32(i) * 0.01}))
	}

	c, err := New(Options{TopK: 5, AlbumSize: 10, DistanceThreshold: 0.3, Rand: rand.New(rand.NewSource(1))})
	require.NoError(t, err)
	res, err := Run(ctx, s, c)
	require.NoError(t, err)
	require.Len(t, res.Albums, 1)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, res.Albums[0])

	// Later writes do not leak into the snapshot of a finished pass.
	require.NoError(t, s.Add(ctx, 5, []float32{1, 0}))
	assert.Equal(t, 4, res.Snapshot.Len())
}

func flatten(albums [][]int64) []int64 {
	var out []int64
	for _, a := range albums {
		out = append(out, a...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
