// Package server exposes the query engine over HTTP.
//
// Endpoints:
//
//	POST /v1/query              answer a natural-language question
//	GET  /v1/voxels/:id         fetch one voxel
//	GET  /v1/voxels/:id/neighbors  list its adjacency edges
//	GET  /v1/path               shortest NEIGHBOR path between two voxels
//	GET  /healthz               liveness and voxel count
//	GET  /metrics               Prometheus metrics
package server
