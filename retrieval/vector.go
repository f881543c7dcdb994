package retrieval

import (
	"context"
	"log/slog"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
)

// VectorRetriever answers questions by embedding similarity.
type VectorRetriever struct {
	embedder ai.Embedder
	index    storage.VectorIndex
	store    storage.VoxelStore
	logger   *slog.Logger
}

// VectorOption configures a VectorRetriever.
type VectorOption func(*VectorRetriever) error

// WithVectorLogger sets a custom logger.
// Default is slog.Default().
func WithVectorLogger(logger *slog.Logger) VectorOption {
	return func(v *VectorRetriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		v.logger = logger
		return nil
	}
}

// NewVectorRetriever creates a vector channel. store supplies the
// attribute snapshots of the hits.
func NewVectorRetriever(embedder ai.Embedder, index storage.VectorIndex, store storage.VoxelStore, opts ...VectorOption) (*VectorRetriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	v := &VectorRetriever{
		embedder: embedder,
		index:    index,
		store:    store,
		logger:   slog.Default().With("component", "vector-retriever"),
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Retrieve returns up to k voxels whose similarity to text is at least
// threshold, most similar first.
func (v *VectorRetriever) Retrieve(ctx context.Context, text string, k int, threshold float64) ([]core.Candidate, error) {
	if k <= 0 {
		return []core.Candidate{}, nil
	}

	embedding, err := v.embedder.EmbedText(ctx, text)
	if err != nil {
		v.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}
	embedding = core.Normalize(embedding)

	hits, err := v.index.Search(ctx, embedding, float32(threshold), k)
	if err != nil {
		v.logger.Error("error querying for similar voxels", "err", err)
		return nil, err
	}

	ids := make([]string, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		if float64(h.Score) < threshold || len(ids) == k {
			continue
		}
		ids = append(ids, h.VoxelID)
		scores[h.VoxelID] = float64(h.Score)
	}
	if len(ids) == 0 {
		return []core.Candidate{}, nil
	}

	voxels, err := v.store.GetVoxels(ctx, ids...)
	if err != nil {
		v.logger.Error("error retrieving voxel snapshots", "count", len(ids), "err", err)
		return nil, err
	}
	if len(voxels) < len(ids) {
		v.logger.Warn("vector index references voxels missing from the store",
			"hits", len(ids), "found", len(voxels))
	}

	candidates := make([]core.Candidate, 0, len(voxels))
	for _, vox := range voxels {
		candidates = append(candidates, core.Candidate{
			ID:       vox.ID,
			Source:   core.SourceVector,
			Score:    scores[vox.ID],
			Snapshot: vox,
		})
	}
	v.logger.Debug("vector retrieval complete", "hits", len(candidates), "k", k, "threshold", threshold)
	return candidates, nil
}
