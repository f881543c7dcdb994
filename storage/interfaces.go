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
	"context"

	"github.com/poiesic/stratum/core"
)

// Match is a voxel returned by an attribute query together with the number
// of attribute constraints it satisfied.
type Match struct {
	Voxel     *core.Voxel
	Satisfied int
}

// Hop is a voxel reached by traversal and its hop distance from the start.
type Hop struct {
	ID       string
	Distance int
}

// Similarity is one vector search hit.
type Similarity struct {
	VoxelID string
	Score   float32
}

type VoxelStore interface {
	// AddVoxels stores voxels, replacing any existing voxel with the same ID.
	// Every voxel is validated first; nothing is written if one is invalid.
	AddVoxels(ctx context.Context, voxels ...*core.Voxel) error

	// GetVoxel retrieves a single voxel by ID.
	// Returns ErrNotFound if the voxel doesn't exist.
	GetVoxel(ctx context.Context, id string) (*core.Voxel, error)

	// GetVoxels retrieves voxels in the requested order.
	// Returns only the voxels that exist (no error for missing voxels).
	GetVoxels(ctx context.Context, ids ...string) ([]*core.Voxel, error)

	// Query evaluates the attribute constraints and scope of spec.
	// With MatchAll only voxels satisfying every attribute constraint are
	// returned; with MatchAny every voxel satisfying at least one is.
	// A spec without attribute constraints returns every voxel in scope.
	// Relationship constraints are ignored. Results are ordered by ID.
	Query(ctx context.Context, spec core.ConstraintSpec) ([]Match, error)

	// Traverse walks edges of the given relation breadth-first from start
	// and returns every voxel within maxHops, excluding start, ordered by
	// distance then ID. relation is core.RelationNeighbor or a direction.
	// Returns ErrNotFound if start doesn't exist.
	Traverse(ctx context.Context, start string, relation string, maxHops int) ([]Hop, error)

	// AddNeighbors stores directed adjacency edges.
	AddNeighbors(ctx context.Context, edges ...core.Neighbor) error

	// Neighbors returns the outgoing edges of id matching relation.
	Neighbors(ctx context.Context, id string, relation string) ([]core.Neighbor, error)

	// ShortestPath returns the voxel IDs on a shortest NEIGHBOR path from
	// one voxel to another, both ends included. Returns ErrNotFound when no
	// path exists within maxHops.
	ShortestPath(ctx context.Context, from, to string, maxHops int) ([]string, error)

	// ForEach calls fn for every voxel in ID order until fn returns an error.
	ForEach(ctx context.Context, fn func(*core.Voxel) error) error

	// Count returns the number of stored voxels.
	Count(ctx context.Context) (int, error)
}

type VectorIndex interface {
	// Upsert stores or replaces voxel embeddings.
	Upsert(ctx context.Context, embeddings ...*core.Embedding) error

	// GetEmbedding retrieves the embedding of a voxel.
	// Returns ErrNotFound if the voxel has no embedding.
	GetEmbedding(ctx context.Context, voxelID string) (*core.Embedding, error)

	// Search finds the embeddings most similar to vector.
	// Returns hits with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first) then voxel ID.
	Search(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]Similarity, error)
}

type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// ClearCheckpoint removes the checkpoint for a processor type.
	ClearCheckpoint(ctx context.Context, processorType string) error
}
