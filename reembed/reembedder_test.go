package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/stratum/ai/mock"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
	"github.com/poiesic/stratum/storage/badger"
)

func testConfig(batchSize, concurrency int) *Config {
	return &Config{
		BatchSize:      batchSize,
		Concurrency:    concurrency,
		ReportInterval: 10,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}
}

func TestNewReembedder_RequiresDependencies(t *testing.T) {
	store, index, _ := seededStore(t, 0)
	embedder := mock.NewMockEmbedder()

	_, err := NewReembedder(nil, index, nil, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewReembedder(store, nil, nil, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrIndexRequired)
	_, err = NewReembedder(store, index, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	r, err := NewReembedder(store, index, nil, embedder, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), r.config)
}

func TestReembedder_Run(t *testing.T) {
	store, index, backend := seededStore(t, 25)
	checkpoints := badger.NewCheckpointRepository(backend)
	embedder := mock.NewMockEmbedder()
	ctx := context.Background()

	var buf bytes.Buffer
	r, err := NewReembedder(store, index, checkpoints, embedder, testConfig(3, 2), &buf)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	for i := 1; i <= 25; i++ {
		id := fmt.Sprintf("v_M1_%05d", i)
		got, err := index.GetEmbedding(ctx, id)
		require.NoError(t, err, id)
		assert.Len(t, got.Vector, mock.Dimensions)
	}
	// 25 voxels in batches of 3
	assert.Equal(t, 9, embedder.CallCount())

	output := buf.String()
	assert.Contains(t, output, "Starting reembedding of 25 voxels")
	assert.Contains(t, output, "25/25")
	assert.Contains(t, output, "Reembedding complete")

	cp, err := checkpoints.LoadCheckpoint(ctx, ProcessorType)
	require.NoError(t, err)
	assert.Nil(t, cp, "checkpoint cleared after a complete run")
}

func TestReembedder_SecondRunSkipsUnchanged(t *testing.T) {
	store, index, _ := seededStore(t, 25)
	embedder := mock.NewMockEmbedder()
	ctx := context.Background()

	r, err := NewReembedder(store, index, nil, embedder, testConfig(10, 2), nil)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))
	calls := embedder.CallCount()

	var buf bytes.Buffer
	r, err = NewReembedder(store, index, nil, embedder, testConfig(10, 2), &buf)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	assert.Equal(t, calls, embedder.CallCount())
	assert.Contains(t, buf.String(), "25 unchanged")

	t.Run("force", func(t *testing.T) {
		cfg := testConfig(10, 2)
		cfg.Force = true
		r, err := NewReembedder(store, index, nil, embedder, cfg, nil)
		require.NoError(t, err)
		require.NoError(t, r.Run(ctx))
		assert.Equal(t, calls+3, embedder.CallCount())
	})
}

func TestReembedder_EmptyStore(t *testing.T) {
	store, index, _ := seededStore(t, 0)
	embedder := mock.NewMockEmbedder()

	var buf bytes.Buffer
	r, err := NewReembedder(store, index, nil, embedder, DefaultConfig(), &buf)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	assert.Contains(t, buf.String(), "0 voxels")
	assert.Zero(t, embedder.CallCount())
}

func TestReembedder_ResumesFromCheckpoint(t *testing.T) {
	store, index, backend := seededStore(t, 25)
	checkpoints := badger.NewCheckpointRepository(backend)
	embedder := mock.NewMockEmbedder()
	ctx := context.Background()

	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: ProcessorType,
		LastVoxelID:   "v_M1_00020",
	}))

	var buf bytes.Buffer
	r, err := NewReembedder(store, index, checkpoints, embedder, testConfig(10, 1), &buf)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	assert.Equal(t, 1, embedder.CallCount())
	assert.Contains(t, buf.String(), "Resuming after v_M1_00020 (20 of 25 voxels already done)")

	_, err = index.GetEmbedding(ctx, "v_M1_00020")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = index.GetEmbedding(ctx, "v_M1_00021")
	assert.NoError(t, err)
}

func TestReembedder_RestartIgnoresCheckpoint(t *testing.T) {
	store, index, backend := seededStore(t, 25)
	checkpoints := badger.NewCheckpointRepository(backend)
	embedder := mock.NewMockEmbedder()
	ctx := context.Background()

	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: ProcessorType,
		LastVoxelID:   "v_M1_00020",
	}))

	cfg := testConfig(10, 1)
	cfg.Restart = true
	r, err := NewReembedder(store, index, checkpoints, embedder, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	assert.Equal(t, 3, embedder.CallCount())
	_, err = index.GetEmbedding(ctx, "v_M1_00001")
	assert.NoError(t, err)
}

func TestReembedder_EmbeddingErrorKeepsCheckpoint(t *testing.T) {
	store, index, backend := seededStore(t, 25)
	checkpoints := badger.NewCheckpointRepository(backend)
	embedder := mock.NewMockEmbedder()
	ctx := context.Background()

	boom := errors.New("embedding service down")
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		// The third batch holds the last five voxels
		if len(texts) == 5 {
			return nil, boom
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.Vector(text)
		}
		return out, nil
	}

	r, err := NewReembedder(store, index, checkpoints, embedder, testConfig(10, 1), nil)
	require.NoError(t, err)
	err = r.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	cp, err := checkpoints.LoadCheckpoint(ctx, ProcessorType)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "v_M1_00020", cp.LastVoxelID)
}

func TestReembedder_ContextCancellation(t *testing.T) {
	store, index, _ := seededStore(t, 25)
	embedder := mock.NewMockEmbedder()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := NewReembedder(store, index, nil, embedder, testConfig(10, 1), nil)
	require.NoError(t, err)
	err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, embedder.CallCount())
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Greater(t, config.BatchSize, 0)
	assert.Greater(t, config.Concurrency, 0)
	assert.Greater(t, config.ReportInterval, 0)
	assert.Greater(t, config.MaxRetries, 0)
	assert.Greater(t, config.RetryDelay, time.Duration(0))
}
