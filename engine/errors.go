package engine

import "errors"

var (
	// ErrIllegalTransition is returned when a query would leave the
	// lifecycle state table. It indicates a bug, not a runtime condition.
	ErrIllegalTransition = errors.New("illegal lifecycle transition")

	// ErrStoreRequired is returned when a voxel store is not provided.
	ErrStoreRequired = errors.New("voxel store required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyQuery is returned for blank query text.
	ErrEmptyQuery = errors.New("query text is empty")

	// ErrInvalidConfig is returned when engine configuration fails validation.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)
