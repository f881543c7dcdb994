// Package retrieval implements the two candidate channels of a query.
//
// GraphRetriever turns a core.ConstraintSpec into exact store lookups:
// attribute constraints become filters and within-k-hops constraints
// become bounded breadth-first traversals from a reference voxel. Each
// candidate is scored by the fraction of constraints it satisfies.
//
// VectorRetriever embeds the question and searches the vector index for
// voxels whose description embeddings are similar, scoring by cosine
// similarity.
//
// Both return an empty slice, not an error, when nothing matches.
package retrieval
