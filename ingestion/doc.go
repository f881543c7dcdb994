// Package ingestion loads voxel datasets into the store and vector index.
//
// Voxels and neighbour edges are read from CSV files. When no neighbour
// file is supplied, edges are derived from voxel centres by BuildAdjacency.
// The Pipeline stores voxels and edges synchronously and then embeds voxel
// descriptions on a worker pool. Embedding failures are logged and
// reported by Wait; they never undo the stored voxels.
package ingestion
