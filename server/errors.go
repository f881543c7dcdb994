package server

import "errors"

var (
	// ErrEngineRequired is returned when no query engine is provided.
	ErrEngineRequired = errors.New("query engine required")

	// ErrStoreRequired is returned when no voxel store is provided.
	ErrStoreRequired = errors.New("voxel store required")
)
