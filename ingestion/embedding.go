package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/reembed"
	"github.com/poiesic/stratum/storage"
)

// embeddingProcessor indexes the description embeddings of voxels.
type embeddingProcessor struct {
	batch  *reembed.BatchProcessor
	logger *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

func newEmbeddingProcessor(index storage.VectorIndex, embedder ai.Embedder, maxRetries int, logger *slog.Logger) (processor, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrAIProviderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		batch:  reembed.NewBatchProcessor(index, embedder, max(maxRetries, 1), 500*time.Millisecond, false),
		logger: logger.With("processor", "embeddings"),
	}, nil
}

func (ep *embeddingProcessor) process(ctx context.Context, voxels []*core.Voxel) (int, int, error) {
	ep.logger.Debug("embedding voxels", "voxels", len(voxels), "first", voxels[0].ID)
	embedded, skipped, err := ep.batch.Process(ctx, voxels)
	if err != nil {
		ep.logger.Error("error embedding voxels", "first", voxels[0].ID, "err", err)
		return 0, 0, err
	}
	return embedded, skipped, nil
}
