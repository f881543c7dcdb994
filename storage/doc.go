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


// Package storage provides the storage abstraction layer for stratum.
//
// The voxel dataset is reached through two stores:
//
//   - VoxelStore: attributed voxels plus NEIGHBOR adjacency edges. Serves
//     attribute queries, hop-bounded traversal and shortest paths.
//   - VectorIndex: one embedding per voxel description, searched by cosine
//     similarity.
//
// CheckpointRepository persists progress of long-running processors such
// as the re-embedder.
//
// The badger subpackage implements all three on an embedded BadgerDB. The
// pgvector subpackage implements VectorIndex on PostgreSQL.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	voxels := badger.NewVoxelStore(backend)
//
// Use in tests with in-memory storage:
//
//	voxels, index, backend, err := badger.NewMemoryStores()
//
// # Thread Safety
//
// All implementations are safe for concurrent use. Voxels are immutable
// once ingested, so readers never observe partial writes.
//
// # Context Support
//
// All methods accept context.Context. Long scans check for cancellation
// between records.
package storage
