package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
)

// VectorIndex implements storage.VectorIndex for BadgerDB with an
// exhaustive cosine scan. Stored vectors are expected to be unit length.
type VectorIndex struct {
	backend *Backend
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a new VectorIndex.
func NewVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{backend: backend}
}

func (ix *VectorIndex) Upsert(ctx context.Context, embeddings ...*core.Embedding) error {
	return writeChunked(ctx, ix.backend, embeddings, func(tx *badger.Txn, e *core.Embedding) error {
		if e.VoxelID == "" {
			return fmt.Errorf("%w: embedding without voxel id", storage.ErrInvalidQuery)
		}
		return tx.Set(makeEmbeddingKey(e.VoxelID), storage.MarshalEmbedding(e))
	})
}

func (ix *VectorIndex) GetEmbedding(ctx context.Context, voxelID string) (*core.Embedding, error) {
	var embedding *core.Embedding
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingKey(voxelID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: embedding %s", storage.ErrNotFound, voxelID)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			embedding, err = storage.UnmarshalEmbedding(val)
			return err
		})
	}, false)
	return embedding, err
}

// Search finds embeddings similar to the given vector.
// Implements storage.VectorIndex interface.
func (ix *VectorIndex) Search(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]storage.Similarity, error) {
	if limit <= 0 {
		return nil, nil
	}

	var results []storage.Similarity
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		n := 0
		return scanPrefix(tx, []byte(embeddingPrefix), nil, func(key, val []byte) error {
			n++
			if n%forEachPageSize == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			embedding, err := storage.UnmarshalEmbedding(val)
			if err != nil {
				return err
			}

			// Skip voxels without embeddings
			if len(embedding.Vector) == 0 {
				return nil
			}
			if len(embedding.Vector) != len(vector) {
				return fmt.Errorf("%w: query has %d dimensions, %s has %d",
					storage.ErrDimensionMismatch, len(vector), embedding.VoxelID, len(embedding.Vector))
			}

			// Cosine similarity is the dot product for normalized vectors
			similarity := dotProduct(vector, embedding.Vector)
			if similarity >= minSimilarity {
				results = append(results, storage.Similarity{
					VoxelID: embedding.VoxelID,
					Score:   similarity,
				})
			}
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending, ties by ID
	slices.SortFunc(results, func(a, b storage.Similarity) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.VoxelID, b.VoxelID)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range min(len(a), len(b)) {
		sum += a[i] * b[i]
	}
	return sum
}
