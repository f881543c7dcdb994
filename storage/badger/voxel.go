package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
)

// forEachPageSize is the number of voxels read per transaction by ForEach.
const forEachPageSize = 256

// VoxelStore implements storage.VoxelStore for BadgerDB.
type VoxelStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.VoxelStore = (*VoxelStore)(nil)

// NewVoxelStore creates a new VoxelStore.
func NewVoxelStore(backend *Backend) *VoxelStore {
	return &VoxelStore{
		backend: backend,
		logger:  backend.logger.With("store", "voxel"),
	}
}

// AddVoxels validates and stores voxels, replacing existing ones and
// keeping the layer index in step.
func (s *VoxelStore) AddVoxels(ctx context.Context, voxels ...*core.Voxel) error {
	for _, v := range voxels {
		if err := core.ValidateVoxel(v); err != nil {
			return err
		}
	}

	err := writeChunked(ctx, s.backend, voxels, func(tx *badger.Txn, v *core.Voxel) error {
		key := makeVoxelKey(v.ID)

		// Drop the stale layer index entry when a voxel moves layers
		old, err := readVoxel(tx, key)
		if err != nil {
			return err
		}
		if old != nil && old.Layer() != v.Layer() {
			if err := tx.Delete(makeLayerKey(old.Layer(), old.ID)); err != nil {
				return err
			}
		}

		if err := tx.Set(key, storage.MarshalVoxel(v)); err != nil {
			return err
		}
		if layer := v.Layer(); layer != "" {
			return tx.Set(makeLayerKey(layer, v.ID), nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("stored voxels", "count", len(voxels))
	return nil
}

// GetVoxel retrieves a single voxel by ID.
func (s *VoxelStore) GetVoxel(ctx context.Context, id string) (*core.Voxel, error) {
	var voxel *core.Voxel
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		voxel, err = readVoxel(tx, makeVoxelKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if voxel == nil {
		return nil, fmt.Errorf("%w: voxel %s", storage.ErrNotFound, id)
	}
	return voxel, nil
}

// GetVoxels retrieves voxels in the requested order, skipping missing IDs.
func (s *VoxelStore) GetVoxels(ctx context.Context, ids ...string) ([]*core.Voxel, error) {
	voxels := make([]*core.Voxel, 0, len(ids))
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			voxel, err := readVoxel(tx, makeVoxelKey(id))
			if err != nil {
				return err
			}
			if voxel != nil {
				voxels = append(voxels, voxel)
			}
		}
		return nil
	}, false)
	return voxels, err
}

// Query evaluates the attribute constraints and scope of spec. A layer
// scope reads through the layer index; any other query scans every voxel.
func (s *VoxelStore) Query(ctx context.Context, spec core.ConstraintSpec) ([]storage.Match, error) {
	constraints := spec.AttributeConstraints()
	for _, c := range constraints {
		if err := core.ValidateConstraint(c); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
		}
	}

	var matches []storage.Match
	evaluate := func(v *core.Voxel) {
		if !spec.Scope.Matches(v) {
			return
		}
		satisfied := 0
		for _, c := range constraints {
			if c.Matches(v) {
				satisfied++
			}
		}
		switch {
		case len(constraints) == 0:
		case spec.Combinator == core.MatchAny && satisfied == 0:
			return
		case spec.Combinator == core.MatchAll && satisfied < len(constraints):
			return
		}
		matches = append(matches, storage.Match{Voxel: v, Satisfied: satisfied})
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if len(spec.Scope.Layers) > 0 {
			return s.scanLayers(ctx, tx, spec.Scope.Layers, evaluate)
		}
		n := 0
		return scanPrefix(tx, []byte(voxelPrefix), nil, func(key, val []byte) error {
			n++
			if n%forEachPageSize == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			voxel, err := storage.UnmarshalVoxel(val)
			if err != nil {
				return err
			}
			evaluate(voxel)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b storage.Match) int {
		return strings.Compare(a.Voxel.ID, b.Voxel.ID)
	})
	return matches, nil
}

// scanLayers reads the voxels of each layer through the layer index.
func (s *VoxelStore) scanLayers(ctx context.Context, tx *badger.Txn, layers []string, fn func(*core.Voxel)) error {
	seen := make(map[string]bool)
	for _, layer := range layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Layer ids are stored as ingested; the scope match is case-insensitive.
		for _, variant := range []string{layer, strings.ToUpper(layer)} {
			prefix := makePartialLayerKey(variant)
			var ids []string
			err := scanKeys(tx, prefix, func(key []byte) error {
				ids = append(ids, string(key[len(prefix):]))
				return nil
			})
			if err != nil {
				return err
			}
			for _, id := range ids {
				if seen[id] {
					continue
				}
				seen[id] = true
				voxel, err := readVoxel(tx, makeVoxelKey(id))
				if err != nil {
					return err
				}
				if voxel != nil {
					fn(voxel)
				}
			}
		}
	}
	return nil
}

// Traverse walks edges of relation breadth-first from start and returns
// the voxels within maxHops, excluding start, ordered by distance then ID.
func (s *VoxelStore) Traverse(ctx context.Context, start string, relation string, maxHops int) ([]storage.Hop, error) {
	if maxHops < 1 {
		return nil, fmt.Errorf("%w: maxHops must be >= 1", storage.ErrInvalidQuery)
	}

	var hops []storage.Hop
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if exists, err := keyExists(tx, makeVoxelKey(start)); err != nil {
			return err
		} else if !exists {
			return fmt.Errorf("%w: voxel %s", storage.ErrNotFound, start)
		}

		visited := map[string]bool{start: true}
		frontier := []string{start}
		for depth := 1; depth <= maxHops && len(frontier) > 0; depth++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			var next []string
			for _, id := range frontier {
				edges, err := readNeighbors(tx, id, relation)
				if err != nil {
					return err
				}
				for _, e := range edges {
					if visited[e.To] {
						continue
					}
					visited[e.To] = true
					next = append(next, e.To)
				}
			}
			slices.Sort(next)
			for _, id := range next {
				hops = append(hops, storage.Hop{ID: id, Distance: depth})
			}
			frontier = next
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return hops, nil
}

// AddNeighbors stores directed adjacency edges.
func (s *VoxelStore) AddNeighbors(ctx context.Context, edges ...core.Neighbor) error {
	return writeChunked(ctx, s.backend, edges, func(tx *badger.Txn, e core.Neighbor) error {
		if e.From == "" || e.To == "" {
			return fmt.Errorf("%w: edge needs both endpoints", storage.ErrInvalidQuery)
		}
		return tx.Set(makeNeighborKey(e.From, e.To), storage.MarshalNeighbor(e))
	})
}

// Neighbors returns the outgoing edges of id matching relation.
func (s *VoxelStore) Neighbors(ctx context.Context, id string, relation string) ([]core.Neighbor, error) {
	var edges []core.Neighbor
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		edges, err = readNeighbors(tx, id, relation)
		return err
	}, false)
	return edges, err
}

// ShortestPath returns the voxel IDs on a shortest NEIGHBOR path between
// from and to, both included.
func (s *VoxelStore) ShortestPath(ctx context.Context, from, to string, maxHops int) ([]string, error) {
	if from == to {
		if _, err := s.GetVoxel(ctx, from); err != nil {
			return nil, err
		}
		return []string{from}, nil
	}

	var path []string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		parent := map[string]string{from: ""}
		frontier := []string{from}
		for depth := 0; depth < maxHops && len(frontier) > 0; depth++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			var next []string
			for _, id := range frontier {
				edges, err := readNeighbors(tx, id, core.RelationNeighbor)
				if err != nil {
					return err
				}
				for _, e := range edges {
					if _, ok := parent[e.To]; ok {
						continue
					}
					parent[e.To] = id
					if e.To == to {
						for at := to; at != ""; at = parent[at] {
							path = append(path, at)
						}
						slices.Reverse(path)
						return nil
					}
					next = append(next, e.To)
				}
			}
			frontier = next
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	if path == nil {
		return nil, fmt.Errorf("%w: no path from %s to %s within %d hops", storage.ErrNotFound, from, to, maxHops)
	}
	return path, nil
}

// ForEach calls fn for every voxel in ID order. Voxels are read in pages
// so fn never runs inside a transaction.
func (s *VoxelStore) ForEach(ctx context.Context, fn func(*core.Voxel) error) error {
	var seek []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page := make([]*core.Voxel, 0, forEachPageSize)
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			return scanPrefix(tx, []byte(voxelPrefix), seek, func(key, val []byte) error {
				if len(page) == forEachPageSize {
					return errPageFull
				}
				voxel, err := storage.UnmarshalVoxel(val)
				if err != nil {
					return err
				}
				page = append(page, voxel)
				return nil
			})
		}, false)
		if err != nil && !errors.Is(err, errPageFull) {
			return err
		}

		for _, v := range page {
			if err := fn(v); err != nil {
				return err
			}
		}
		if len(page) < forEachPageSize {
			return nil
		}
		// Resume just after the last key of this page
		seek = append(makeVoxelKey(page[len(page)-1].ID), 0)
	}
}

// Count returns the number of stored voxels.
func (s *VoxelStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanKeys(tx, []byte(voxelPrefix), func([]byte) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

var errPageFull = errors.New("page full")

// readVoxel reads a voxel, returning nil when the key is absent.
func readVoxel(tx *badger.Txn, key []byte) (*core.Voxel, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var voxel *core.Voxel
	err = item.Value(func(val []byte) error {
		var err error
		voxel, err = storage.UnmarshalVoxel(val)
		return err
	})
	return voxel, err
}

func keyExists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// readNeighbors returns the outgoing edges of id whose relation matches.
func readNeighbors(tx *badger.Txn, id string, relation string) ([]core.Neighbor, error) {
	var edges []core.Neighbor
	err := scanPrefix(tx, makePartialNeighborKey(id), nil, func(_, val []byte) error {
		edge, err := storage.UnmarshalNeighbor(val)
		if err != nil {
			return err
		}
		if relation == "" || relation == core.RelationNeighbor || string(edge.Direction) == relation {
			edges = append(edges, edge)
		}
		return nil
	})
	return edges, err
}
