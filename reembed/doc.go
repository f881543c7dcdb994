// Package reembed rebuilds the vector index from the voxels in the store,
// typically after switching embedding models.
//
// Voxels are processed in ID order in batches. A checkpoint records the
// last voxel of every completed window of batches so an interrupted run
// resumes where it stopped. Voxels whose description is unchanged since
// their embedding was computed are skipped unless Force is set. Embedding
// calls are retried with exponential backoff.
package reembed
