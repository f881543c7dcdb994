// Package engine orchestrates a query through the hybrid retrieval and
// grounding pipeline.
//
// Each query moves through a fixed lifecycle:
//
//	RECEIVED → CLASSIFIED → PLANNED → RETRIEVED → FUSED → BUDGETED →
//	PROMPTED → GENERATED → VALIDATED → DELIVERED | RETRIED | REFUSED
//
// RETRIED leads back to GENERATED at most once. A query whose retrieval
// comes back empty goes from FUSED straight to DELIVERED with an explicit
// negative answer and the generator is never called.
//
// The graph and vector channels run concurrently, each under its own
// timeout. A channel that fails or times out contributes nothing and the
// answer is flagged degraded. Generation failures and query deadline
// exhaustion are the only errors returned to callers.
package engine
