package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *VectorIndex {
	t.Helper()
	_, index, backend, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return index
}

func TestVectorIndex_Search_Empty(t *testing.T) {
	index := newTestIndex(t)

	results, err := index.Search(context.Background(), []float32{1, 0, 0}, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorIndex_Search(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx,
		&core.Embedding{VoxelID: "v_M1_00001", Vector: []float32{1, 0, 0}},
		&core.Embedding{VoxelID: "v_M1_00002", Vector: []float32{0.8, 0.6, 0}},
		&core.Embedding{VoxelID: "v_M1_00003", Vector: []float32{0, 0, 1}},
		&core.Embedding{VoxelID: "v_M1_00004", Vector: []float32{0.8, 0.6, 0}},
		&core.Embedding{VoxelID: "v_M1_00005"},
	))

	results, err := index.Search(ctx, []float32{1, 0, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "v_M1_00001", results[0].VoxelID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	// Equal scores tie-break by ID
	assert.Equal(t, "v_M1_00002", results[1].VoxelID)
	assert.Equal(t, "v_M1_00004", results[2].VoxelID)

	limited, err := index.Search(ctx, []float32{1, 0, 0}, 0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestVectorIndex_Search_DimensionMismatch(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, &core.Embedding{VoxelID: "v_M1_00001", Vector: []float32{1, 0, 0}}))

	_, err := index.Search(ctx, []float32{1, 0}, 0, 10)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestVectorIndex_GetEmbedding(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, index.Upsert(ctx, &core.Embedding{
		VoxelID:     "v_M1_00001",
		Vector:      []float32{0.6, 0.8},
		ContentHash: core.IDFromContent("desc"),
		UpdatedAt:   now,
	}))

	got, err := index.GetEmbedding(ctx, "v_M1_00001")
	require.NoError(t, err)
	assert.Equal(t, core.IDFromContent("desc"), got.ContentHash)
	assert.True(t, now.Equal(got.UpdatedAt))

	_, err = index.GetEmbedding(ctx, "v_M1_00002")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCheckpointRepository(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	repo := NewCheckpointRepository(backend)
	ctx := context.Background()

	got, err := repo.LoadCheckpoint(ctx, "voxel_reembed")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: "voxel_reembed",
		LastVoxelID:   "v_M2_00010",
	}))

	got, err = repo.LoadCheckpoint(ctx, "voxel_reembed")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v_M2_00010", got.LastVoxelID)
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, repo.ClearCheckpoint(ctx, "voxel_reembed"))
	got, err = repo.LoadCheckpoint(ctx, "voxel_reembed")
	require.NoError(t, err)
	assert.Nil(t, got)
}
