package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/stratum/ai/mock"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage/badger"
	"github.com/poiesic/stratum/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVector(t *testing.T) (*VectorRetriever, *mock.MockEmbedder, *badger.VectorIndex, []*core.Voxel) {
	t.Helper()
	store, index, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	embedder := mock.NewMockEmbedder()
	voxels, edges := storagetest.Line()
	require.NoError(t, storagetest.Seed(context.Background(), store, index, embedder, voxels, edges))
	embedder.Reset()

	v, err := NewVectorRetriever(embedder, index, store)
	require.NoError(t, err)
	return v, embedder, index, voxels
}

func TestNewVectorRetriever(t *testing.T) {
	store, index, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()
	embedder := mock.NewMockEmbedder()

	_, err = NewVectorRetriever(nil, index, store)
	assert.Equal(t, ErrEmbedderRequired, err)
	_, err = NewVectorRetriever(embedder, nil, store)
	assert.Equal(t, ErrIndexRequired, err)
	_, err = NewVectorRetriever(embedder, index, nil)
	assert.Equal(t, ErrStoreRequired, err)
}

func TestVectorRetrieve_ExactDescription(t *testing.T) {
	v, _, _, voxels := newVector(t)
	target := voxels[2]

	got, err := v.Retrieve(context.Background(), core.Describe(target), 5, 0.99)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, target.ID, got[0].ID)
	assert.Equal(t, core.SourceVector, got[0].Source)
	assert.InDelta(t, 1.0, got[0].Score, 1e-4)
	assert.Equal(t, target.ID, got[0].Snapshot.ID)
}

func TestVectorRetrieve_TopK(t *testing.T) {
	v, _, _, voxels := newVector(t)

	got, err := v.Retrieve(context.Background(), core.Describe(voxels[0]), 3, -1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, voxels[0].ID, got[0].ID)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestVectorRetrieve_ZeroK(t *testing.T) {
	v, embedder, _, _ := newVector(t)

	got, err := v.Retrieve(context.Background(), "anything", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, embedder.CallCount())
}

func TestVectorRetrieve_SkipsVoxelsMissingFromStore(t *testing.T) {
	v, _, index, _ := newVector(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, &core.Embedding{
		VoxelID: "v_M9_00001",
		Vector:  mock.Vector("orphan"),
	}))

	got, err := v.Retrieve(ctx, "orphan", 5, 0.99)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestVectorRetrieve_EmbedderError(t *testing.T) {
	v, embedder, _, _ := newVector(t)
	boom := errors.New("embedding service down")
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}

	_, err := v.Retrieve(context.Background(), "x", 5, 0.5)
	assert.ErrorIs(t, err, boom)
}
