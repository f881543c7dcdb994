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

package storage

import (
	"fmt"

	"github.com/poiesic/stratum/core"
)

func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

func MarshalVoxel(voxel *core.Voxel) []byte {
	buf := make([]byte, core.VoxelMUS.Size(*voxel))
	core.VoxelMUS.Marshal(*voxel, buf)
	return buf
}

func UnmarshalVoxel(data []byte) (*core.Voxel, error) {
	voxel, _, err := core.VoxelMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: voxel: %w", ErrSerializationFailed, err)
	}
	return &voxel, nil
}

func MarshalEmbedding(embedding *core.Embedding) []byte {
	buf := make([]byte, core.EmbeddingMUS.Size(*embedding))
	core.EmbeddingMUS.Marshal(*embedding, buf)
	return buf
}

func UnmarshalEmbedding(data []byte) (*core.Embedding, error) {
	embedding, _, err := core.EmbeddingMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding: %w", ErrSerializationFailed, err)
	}
	return &embedding, nil
}

func MarshalNeighbor(edge core.Neighbor) []byte {
	buf := make([]byte, core.NeighborMUS.Size(edge))
	core.NeighborMUS.Marshal(edge, buf)
	return buf
}

func UnmarshalNeighbor(data []byte) (core.Neighbor, error) {
	edge, _, err := core.NeighborMUS.Unmarshal(data)
	if err != nil {
		return core.Neighbor{}, fmt.Errorf("%w: neighbor: %w", ErrSerializationFailed, err)
	}
	return edge, nil
}

func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	buf := make([]byte, core.CheckpointMUS.Size(*checkpoint))
	core.CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, _, err := core.CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: checkpoint: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}
