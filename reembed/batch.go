package reembed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
)

// BatchProcessor embeds the descriptions of a batch of voxels and stores
// the resulting vectors.
type BatchProcessor struct {
	index          storage.VectorIndex
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	force          bool
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts per embedding call
// retryBaseDelay: base delay for exponential backoff
// force: re-embed voxels whose description is unchanged
func NewBatchProcessor(index storage.VectorIndex, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration, force bool) *BatchProcessor {
	return &BatchProcessor{
		index:          index,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		force:          force,
	}
}

// Process embeds the voxels that need it and returns how many were
// embedded and how many were skipped as unchanged. Vectors are normalized
// before they are stored.
func (bp *BatchProcessor) Process(ctx context.Context, voxels []*core.Voxel) (embedded, skipped int, err error) {
	if len(voxels) == 0 {
		return 0, 0, nil
	}

	pending := make([]*core.Voxel, 0, len(voxels))
	texts := make([]string, 0, len(voxels))
	for _, v := range voxels {
		text := core.Describe(v)
		if !bp.force {
			current, err := bp.index.GetEmbedding(ctx, v.ID)
			switch {
			case err == nil && current.ContentHash == core.IDFromContent(text):
				skipped++
				continue
			case err != nil && !errors.Is(err, storage.ErrNotFound):
				return 0, 0, fmt.Errorf("failed to load embedding of %s: %w", v.ID, err)
			}
		}
		pending = append(pending, v)
		texts = append(texts, text)
	}
	if len(pending) == 0 {
		return 0, skipped, nil
	}

	var vectors [][]float32
	err = RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(vectors) != len(pending) {
		return 0, 0, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(pending), len(vectors))
	}

	now := time.Now().UTC()
	embeddings := make([]*core.Embedding, len(pending))
	for i, v := range pending {
		embeddings[i] = &core.Embedding{
			VoxelID:     v.ID,
			Vector:      core.Normalize(vectors[i]),
			ContentHash: core.IDFromContent(texts[i]),
			UpdatedAt:   now,
		}
	}
	if err := bp.index.Upsert(ctx, embeddings...); err != nil {
		return 0, 0, fmt.Errorf("failed to store embeddings: %w", err)
	}
	return len(pending), skipped, nil
}
