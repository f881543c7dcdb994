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

	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
)

const (
	// DefaultBatchSize is the default number of voxels embedded per call
	DefaultBatchSize = 100
)

// VoxelIterator walks the store in ID order in fixed-size batches.
type VoxelIterator struct {
	store     storage.VoxelStore
	batchSize int
}

// NewVoxelIterator creates a new voxel iterator.
// batchSize: number of voxels per batch (DefaultBatchSize if <= 0)
func NewVoxelIterator(store storage.VoxelStore, batchSize int) *VoxelIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &VoxelIterator{store: store, batchSize: batchSize}
}

// ForEach calls fn for each batch of voxels whose ID sorts after
// startAfter. An empty startAfter starts at the first voxel. Iteration
// stops on the first error from fn or when ctx is done.
func (it *VoxelIterator) ForEach(ctx context.Context, startAfter string, fn func([]*core.Voxel) error) error {
	batch := make([]*core.Voxel, 0, it.batchSize)

	err := it.store.ForEach(ctx, func(v *core.Voxel) error {
		if startAfter != "" && v.ID <= startAfter {
			return nil
		}
		batch = append(batch, v)
		if len(batch) < it.batchSize {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]*core.Voxel, 0, it.batchSize)
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
