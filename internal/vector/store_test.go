package vector

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, dim int, opts ...StoreOption) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indices", "photos.idx")
	s, err := Open(path, dim, opts...)
	require.NoError(t, err)
	return s, path
}

func randomVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

func TestStore_EmptyStore(t *testing.T) {
	s, path := openTestStore(t, 4)
	ctx := context.Background()

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)

	assert.Equal(t, Stats{TotalEmbeddings: 0, Dimension: 4, IndexType: "flat_l2"}, s.Stats())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "opening must not create files")
}

func TestStore_SelfMatch(t *testing.T) {
	s, _ := openTestStore(t, 8)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	var target []float32
	for id := int64(1); id <= 20; id++ {
		v := randomVector(rng, 8)
		if id == 13 {
			target = v
		}
		require.NoError(t, s.Add(ctx, id, v))
	}

	results, err := s.Search(ctx, target, 1, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(13), results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
}

func TestStore_NearFarScenario(t *testing.T) {
	s, _ := openTestStore(t, 3)
	ctx := context.Background()

	v1 := []float32{1, 0, 0}
	require.NoError(t, s.Add(ctx, 1, v1))
	require.NoError(t, s.Add(ctx, 2, []float32{0.999, 0.01, 0}))
	require.NoError(t, s.Add(ctx, 3, []float32{0, 0, 1}))

	results, err := s.Search(ctx, v1, 2, 0.1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Less(t, results[1].Distance, float32(0.001))
}

func TestStore_ThresholdFilter(t *testing.T) {
	s, _ := openTestStore(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 1, []float32{0, 1}))
	require.NoError(t, s.Add(ctx, 2, []float32{-1, 0}))

	results, err := s.Search(ctx, []float32{1, 0}, 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)

	rng := rand.New(rand.NewSource(7))
	for id := int64(3); id < 50; id++ {
		require.NoError(t, s.Add(ctx, id, randomVector(rng, 2)))
	}
	for i := 0; i < 10; i++ {
		results, err := s.Search(ctx, randomVector(rng, 2), 10, 0.3)
		require.NoError(t, err)
		for j, m := range results {
			assert.LessOrEqual(t, m.Distance, float32(0.3))
			if j > 0 {
				assert.LessOrEqual(t, results[j-1].Distance, m.Distance)
			}
		}
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 17, 2000} {
		for _, compress := range []bool{false, true} {
			dir := t.TempDir()
			path := filepath.Join(dir, "photos.idx")
			ctx := context.Background()
			rng := rand.New(rand.NewSource(int64(n)))

			s, err := Open(path, 16, WithCompression(compress), WithNormalize(false))
			require.NoError(t, err)
			entries := make([]Entry, n)
			for i := range entries {
				entries[i] = Entry{ID: int64(i + 1), Vector: randomVector(rng, 16)}
			}
			require.NoError(t, s.Replace(ctx, entries))

			reopened, err := Open(path, 16, WithNormalize(false))
			require.NoError(t, err)
			assert.Equal(t, n, reopened.Stats().TotalEmbeddings)
			snap, err := reopened.Snapshot(ctx)
			require.NoError(t, err)
			ids := snap.IDs()
			require.Len(t, ids, n)
			for i, e := range entries {
				assert.Equal(t, e.ID, ids[i])
				v, ok := snap.Vector(e.ID)
				require.True(t, ok)
				assert.Equal(t, e.Vector, v)
			}
		}
	}
}

func TestStore_ReadYourWritesAcrossHandles(t *testing.T) {
	s1, path := openTestStore(t, 2)
	s2, err := Open(path, 2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s1.Add(ctx, 42, []float32{1, 0}))

	results, err := s2.Search(ctx, []float32{1, 0}, 1, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(42), results[0].ID)

	require.NoError(t, s2.Add(ctx, 43, []float32{0, 1}))
	require.NoError(t, s1.Load(ctx))
	assert.Equal(t, 2, s1.Stats().TotalEmbeddings)
}

func TestStore_AddReplacesDuplicate(t *testing.T) {
	s, _ := openTestStore(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 5, []float32{1, 0}))
	require.NoError(t, s.Add(ctx, 5, []float32{0, 1}))
	assert.Equal(t, 1, s.Stats().TotalEmbeddings)

	results, err := s.Search(ctx, []float32{0, 1}, 5, 4)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(5), results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
}

func TestStore_Normalizes(t *testing.T) {
	s, _ := openTestStore(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 1, []float32{10, 0}))
	v, err := s.Vector(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, L2Norm(v), 1e-6)

	results, err := s.Search(ctx, []float32{3, 0}, 1, 0.01)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestStore_Remove(t *testing.T) {
	s, path := openTestStore(t, 2)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, 1, []float32{1, 0}))
	require.NoError(t, s.Add(ctx, 2, []float32{0, 1}))

	n, err := s.Remove(ctx, 1, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reopened, err := Open(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Stats().TotalEmbeddings)
	_, err = reopened.Vector(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_InvalidInput(t *testing.T) {
	s, _ := openTestStore(t, 3)
	ctx := context.Background()

	var dimErr *DimensionMismatchError
	err := s.Add(ctx, 1, []float32{1, 2})
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 3, dimErr.Want)

	_, err = s.Search(ctx, []float32{1, 2, 3, 4}, 1, 1)
	assert.True(t, errors.As(err, &dimErr))

	assert.ErrorIs(t, s.Add(ctx, 0, []float32{1, 2, 3}), ErrInvalidID)

	nan := float32(0)
	nan = nan / nan
	assert.ErrorIs(t, s.Add(ctx, 1, []float32{nan, 0, 0}), ErrInvalidVector)

	_, err = s.Search(ctx, []float32{1, 2, 3}, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidK)
	_, err = s.Search(ctx, []float32{1, 2, 3}, 1, -1)
	assert.ErrorIs(t, err, ErrInvalidDistance)

	assert.Equal(t, 0, s.Stats().TotalEmbeddings)
}

func TestStore_CanceledContext(t *testing.T) {
	s, _ := openTestStore(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Add(ctx, 1, []float32{1, 0}), context.Canceled)
	_, err := s.Search(ctx, []float32{1, 0}, 1, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_InMemory(t *testing.T) {
	s, err := Open("", 2)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, 1, []float32{1, 0}))
	results, err := s.Search(ctx, []float32{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestOpen_RejectsUnknownIndexType(t *testing.T) {
	_, err := Open("", 2, WithIndexType("ivf"))
	assert.Error(t, err)
}

func BenchmarkStore_Search(b *testing.B) {
	s, err := Open("", 384)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	rng := rand.New(rand.NewSource(3))
	entries := make([]Entry, 5000)
	for i := range entries {
		entries[i] = Entry{ID: int64(i + 1), Vector: randomVector(rng, 384)}
	}
	if err := s.Replace(ctx, entries); err != nil {
		b.Fatal(err)
	}
	q := randomVector(rng, 384)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Search(ctx, q, 10, 4); err != nil {
			b.Fatal(err)
		}
	}
}

func TestStore_Distances(t *testing.T) {
	s, _ := openTestStore(t, 2)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, 1, []float32{1, 0}))
	require.NoError(t, s.Add(ctx, 2, []float32{0, 3}))

	d, err := s.Distances(ctx, []float32{2, 0}, []int64{1, 2, 99})
	require.NoError(t, err)
	require.Len(t, d, 2)
	assert.InDelta(t, 0, d[1], 1e-6)
	assert.InDelta(t, 2, d[2], 1e-6)

	_, err = s.Distances(ctx, []float32{1}, []int64{1})
	var dimErr *DimensionMismatchError
	assert.ErrorAs(t, err, &dimErr)
}
