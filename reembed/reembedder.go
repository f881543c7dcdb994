// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
)

// ProcessorType identifies re-embedding checkpoints.
const ProcessorType = "voxel_reembed"

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of voxels embedded per call
	BatchSize int `yaml:"batch_size" validate:"gte=0"`

	// Concurrency is the number of batches embedded in parallel
	Concurrency int `yaml:"concurrency" validate:"gte=0"`

	// ReportInterval is how often to report progress (number of voxels)
	ReportInterval int `yaml:"report_interval" validate:"gte=0"`

	// MaxRetries is the maximum number of attempts per embedding call
	MaxRetries int `yaml:"max_retries" validate:"gte=0"`

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Force re-embeds voxels whose description has not changed
	Force bool `yaml:"force"`

	// Restart ignores any saved checkpoint
	Restart bool `yaml:"restart"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		Concurrency:    2,
		ReportInterval: 500,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder rebuilds the vector index from every voxel in the store.
type Reembedder struct {
	store       storage.VoxelStore
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *VoxelIterator
	logger      *slog.Logger
}

// NewReembedder creates a new reembedder. checkpoints may be nil, in which
// case every run starts from the first voxel.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(
	store storage.VoxelStore,
	index storage.VectorIndex,
	checkpoints storage.CheckpointRepository,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
) (*Reembedder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		store:       store,
		checkpoints: checkpoints,
		config:      config,
		progress:    progress,
		processor:   NewBatchProcessor(index, embedder, max(config.MaxRetries, 1), config.RetryDelay, config.Force),
		iterator:    NewVoxelIterator(store, config.BatchSize),
		logger:      slog.Default().With("component", "reembedder"),
	}, nil
}

// Run re-embeds every voxel after the saved checkpoint. Batches are
// embedded Concurrency at a time; the checkpoint advances once a whole
// window of batches has been stored.
func (r *Reembedder) Run(ctx context.Context) error {
	total, err := r.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count voxels: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No voxels found in store (0 voxels)\n")
		return nil
	}

	startAfter, err := r.resumePoint(ctx)
	if err != nil {
		return err
	}
	done := 0
	if startAfter != "" {
		done, err = r.countThrough(ctx, startAfter)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.progress, "Resuming after %s (%d of %d voxels already done)\n", startAfter, done, total)
	} else {
		fmt.Fprintf(r.progress, "Starting reembedding of %d voxels (batch size: %d)\n", total, r.iterator.batchSize)
	}

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start(done)

	window := make([][]*core.Voxel, 0, max(r.config.Concurrency, 1))
	flush := func() error {
		if len(window) == 0 {
			return nil
		}
		if err := r.processWindow(ctx, window, tracker); err != nil {
			return err
		}
		last := window[len(window)-1]
		window = window[:0]
		return r.saveCheckpoint(ctx, last[len(last)-1].ID)
	}

	err = r.iterator.ForEach(ctx, startAfter, func(batch []*core.Voxel) error {
		window = append(window, batch)
		if len(window) < cap(window) {
			return nil
		}
		return flush()
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return err
	}

	tracker.Finish()
	if r.checkpoints != nil {
		if err := r.checkpoints.ClearCheckpoint(ctx, ProcessorType); err != nil {
			r.logger.Warn("failed to clear checkpoint", "err", err)
		}
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d voxels (%d unchanged) in %v (%.1f voxels/sec)\n",
		total-done, tracker.Skipped(), elapsed.Round(time.Millisecond), float64(total-done)/max(elapsed.Seconds(), 1e-9))
	return nil
}

func (r *Reembedder) processWindow(ctx context.Context, window [][]*core.Voxel, tracker *ProgressTracker) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, batch := range window {
		g.Go(func() error {
			embedded, skipped, err := r.processor.Process(gctx, batch)
			if err != nil {
				return fmt.Errorf("failed to process batch starting at %s: %w", batch[0].ID, err)
			}
			tracker.Add(embedded, skipped)
			return nil
		})
	}
	return g.Wait()
}

func (r *Reembedder) resumePoint(ctx context.Context) (string, error) {
	if r.checkpoints == nil {
		return "", nil
	}
	if r.config.Restart {
		return "", r.checkpoints.ClearCheckpoint(ctx, ProcessorType)
	}
	cp, err := r.checkpoints.LoadCheckpoint(ctx, ProcessorType)
	if err != nil {
		return "", fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return "", nil
	}
	return cp.LastVoxelID, nil
}

func (r *Reembedder) saveCheckpoint(ctx context.Context, lastID string) error {
	if r.checkpoints == nil {
		return nil
	}
	err := r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: ProcessorType,
		LastVoxelID:   lastID,
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	r.logger.Debug("checkpoint saved", "last_voxel_id", lastID)
	return nil
}

// countThrough counts the voxels whose ID sorts at or before id.
func (r *Reembedder) countThrough(ctx context.Context, id string) (int, error) {
	n := 0
	err := r.store.ForEach(ctx, func(v *core.Voxel) error {
		if v.ID > id {
			return errStop
		}
		n++
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return 0, err
	}
	return n, nil
}
