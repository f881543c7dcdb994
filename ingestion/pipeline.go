package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
)

// DefaultBatchSize is the number of voxels embedded per worker task.
const DefaultBatchSize = 64

// Pipeline orchestrates the ingestion of voxel datasets.
// Voxels and edges are stored synchronously; embeddings are produced
// concurrently on a worker pool.
type Pipeline struct {
	store         storage.VoxelStore
	embeddingPool *ants.Pool
	embeddingProc processor
	batchSize     int
	threshold     float64
	maxRetries    int

	wg       sync.WaitGroup
	mu       sync.Mutex
	errs     []error
	embedded atomic.Int64
	skipped  atomic.Int64

	logger *slog.Logger
}

// Stats summarizes the embedding work finished so far.
type Stats struct {
	Embedded int
	Skipped  int
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		pool, err := ants.NewPool(max(size, 1))
		if err != nil {
			return err
		}
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithBatchSize sets how many voxels each worker task embeds.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithAdjacencyThreshold sets the centre distance used to derive edges
// when a dataset has no neighbour file.
func WithAdjacencyThreshold(metres float64) Option {
	return func(p *Pipeline) error {
		if metres <= 0 {
			return fmt.Errorf("adjacency threshold must be positive, got %v", metres)
		}
		p.threshold = metres
		return nil
	}
}

// WithMaxRetries sets the attempts per embedding call.
func WithMaxRetries(n int) Option {
	return func(p *Pipeline) error {
		p.maxRetries = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	store storage.VoxelStore,
	index storage.VectorIndex,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	pool, err := ants.NewPool(max(runtime.NumCPU()/2, 1))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:         store,
		embeddingPool: pool,
		batchSize:     DefaultBatchSize,
		threshold:     DefaultAdjacencyThreshold,
		maxRetries:    3,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// Created after options so the processor gets the final logger
	p.embeddingProc, err = newEmbeddingProcessor(index, provider.Embedder(), p.maxRetries, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}

	return p, nil
}

// Ingest stores voxels and edges and schedules their embeddings. When
// edges is nil they are derived from voxel centres. Embedding happens in
// the background; call Wait to collect its outcome.
func (p *Pipeline) Ingest(ctx context.Context, voxels []*core.Voxel, edges []core.Neighbor) error {
	if len(voxels) == 0 {
		return nil
	}

	if err := p.store.AddVoxels(ctx, voxels...); err != nil {
		return fmt.Errorf("failed to store voxels: %w", err)
	}

	if edges == nil {
		edges = BuildAdjacency(voxels, p.threshold)
		p.logger.Info("derived adjacency", "voxels", len(voxels), "edges", len(edges), "threshold", p.threshold)
	}
	if len(edges) > 0 {
		if err := p.store.AddNeighbors(ctx, edges...); err != nil {
			return fmt.Errorf("failed to store neighbours: %w", err)
		}
	}

	// Embedding outlives the caller's deadline, not its values
	bg := context.WithoutCancel(ctx)
	for start := 0; start < len(voxels); start += p.batchSize {
		batch := voxels[start:min(start+p.batchSize, len(voxels))]

		p.wg.Add(1)
		err := p.embeddingPool.Submit(func() {
			defer p.wg.Done()
			embedded, skipped, err := p.embeddingProc.process(bg, batch)
			if err != nil {
				p.mu.Lock()
				p.errs = append(p.errs, err)
				p.mu.Unlock()
				return
			}
			p.embedded.Add(int64(embedded))
			p.skipped.Add(int64(skipped))
		})
		if err != nil {
			p.wg.Done()
			return fmt.Errorf("failed to schedule embeddings: %w", err)
		}
	}

	p.logger.Info("ingested voxels", "voxels", len(voxels), "edges", len(edges))
	return nil
}

// Wait blocks until every scheduled embedding task has finished and
// returns the errors they produced since the previous Wait.
func (p *Pipeline) Wait() error {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	err := errors.Join(p.errs...)
	p.errs = nil
	return err
}

// Stats returns the embedding counts so far.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Embedded: int(p.embedded.Load()),
		Skipped:  int(p.skipped.Load()),
	}
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
