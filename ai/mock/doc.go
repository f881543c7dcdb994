// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Generator,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	embeddings, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Scripted answers, served in order
//	gen := mock.NewMockGenerator(
//	    `{"answer": "...", "voxel_ids": ["v_M99_00001"]}`,
//	    `{"answer": "...", "voxel_ids": ["v_M1_00001"]}`,
//	)
//
//	// Check call counts and received prompts
//	count := gen.CallCount()
//	prompts := gen.Prompts()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockGenerator: Replays queued responses, repeating the last
//   - MockProvider: Aggregates mock embedder and generator
package mock
