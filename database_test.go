package stratum

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/stratum/ai/mock"
	"github.com/poiesic/stratum/config"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage/storagetest"
)

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		assert.NotNil(t, db.Store())
		assert.NotNil(t, db.VectorIndex())
		assert.NotNil(t, db.CheckpointRepository())
		assert.NotNil(t, db.Provider())
		assert.NotNil(t, db.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase("", InMemory(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	assert.True(t, db.backend.IsClosed())
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, err := NewDatabase("", InMemory(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := db.NewIngestionPipeline()
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("can create engine", func(t *testing.T) {
		e, err := db.NewEngine()
		require.NoError(t, err)
		require.NotNil(t, e)
	})

	t.Run("can create reembedder", func(t *testing.T) {
		r, err := db.NewReembedder(nil, nil)
		require.NoError(t, err)
		require.NotNil(t, r)
	})
}

func TestDatabase_EndToEnd(t *testing.T) {
	generator := mock.NewMockGenerator(`{"answer": "v_M3_00003 is the wettest clay.", "voxel_ids": ["v_M3_00003"]}`)
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), generator)

	db, err := NewDatabase("", InMemory(), WithProvider(provider))
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	pipeline, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	voxels, edges := storagetest.Line()
	require.NoError(t, pipeline.Ingest(ctx, voxels, edges))
	require.NoError(t, pipeline.Wait())

	e, err := db.NewEngine()
	require.NoError(t, err)
	res, err := e.Ask(ctx, "Find voxels with moisture content above 40 in layer M3")
	require.NoError(t, err)

	assert.Equal(t, core.TaskFiltering, res.Answer.TaskType)
	assert.Equal(t, []string{"v_M3_00003"}, res.Answer.CitedEntityIDs)
	assert.Equal(t, core.StatusValid, res.Answer.ValidationStatus)
	assert.Len(t, res.Context.Entries, 3)
}

func TestDatabase_EmbeddingCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	embedder := mock.NewMockEmbedder()
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockGenerator())

	db, err := NewDatabase("", InMemory(), WithProvider(provider), WithEmbeddingCache(client, 0))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	first, err := db.Provider().Embedder().EmbedText(ctx, "wet clay")
	require.NoError(t, err)
	second, err := db.Provider().Embedder().EmbedText(ctx, "wet clay")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.CallCount())
	assert.NotEmpty(t, mr.Keys())
}

func TestOpen_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.InMemory = true
	cfg.Budget.MaxEntities = 5
	require.NoError(t, cfg.Validate())

	db, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	e, err := db.NewEngine()
	require.NoError(t, err)
	assert.Equal(t, cfg.Engine.QueryTimeout, e.Config().QueryTimeout)

	r, err := db.NewReembedder(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, r)
}
