package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a voxel store is not provided.
	ErrStoreRequired = errors.New("voxel store required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInvalidCSV is returned when a voxel or neighbour file cannot be parsed.
	ErrInvalidCSV = errors.New("invalid csv")

	// ErrMissingColumn is returned when a required CSV column is absent.
	ErrMissingColumn = errors.New("missing column")
)
