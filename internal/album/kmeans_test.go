package album

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKMeans_PartitionIsTotal(t *testing.T) {
	idx := randomIndex(t, 150, 8, 5)
	k := &KMeans{TopK: 6, Seed: 11}
	albums, err := k.Cluster(context.Background(), idx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(albums), 6)

	all := flatten(albums)
	require.Len(t, all, 150)
	for i, id := range all {
		assert.Equal(t, int64(i+1), id)
	}
	for _, a := range albums {
		assert.NotEmpty(t, a)
	}
}

func TestKMeans_Deterministic(t *testing.T) {
	idx := randomIndex(t, 80, 4, 2)
	k := &KMeans{TopK: 4, Seed: 99, MaxIterations: 10}

	first, err := k.Cluster(context.Background(), idx)
	require.NoError(t, err)
	second, err := k.Cluster(context.Background(), idx.Clone())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestKMeans_SeparatesGroups(t *testing.T) {
	k := &KMeans{TopK: 2, Seed: 1}
	albums, err := k.Cluster(context.Background(), twoGroups(t))
	require.NoError(t, err)
	require.Len(t, albums, 2)
	assert.ElementsMatch(t, [][]int64{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}}, albums)
}

func TestKMeans_FewerPhotosThanAlbums(t *testing.T) {
	idx := newIndex(t, 2)
	require.NoError(t, idx.Add(1, []float32{1, 0}))
	require.NoError(t, idx.Add(2, []float32{0, 1}))

	albums, err := (&KMeans{TopK: 3}).Cluster(context.Background(), idx)
	require.NoError(t, err)
	assert.NotNil(t, albums)
	assert.Empty(t, albums)

	albums, err = (&KMeans{TopK: 3}).Cluster(context.Background(), newIndex(t, 2))
	require.NoError(t, err)
	assert.Empty(t, albums)
}

func TestKMeans_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&KMeans{TopK: 2}).Cluster(ctx, twoGroups(t))
	assert.ErrorIs(t, err, context.Canceled)
}
