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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidVoxel indicates a Voxel failed validation.
	ErrInvalidVoxel = errors.New("invalid voxel")

	// ErrEmptyVoxelID indicates the voxel ID is empty.
	ErrEmptyVoxelID = errors.New("voxel id cannot be empty")

	// ErrUnknownField indicates an attribute name that is not part of the schema.
	ErrUnknownField = errors.New("unknown attribute field")

	// ErrFieldKindMismatch indicates a value whose kind does not match the schema.
	ErrFieldKindMismatch = errors.New("attribute kind mismatch")

	// ErrInvalidConstraint indicates a Constraint failed validation.
	ErrInvalidConstraint = errors.New("invalid constraint")

	// ErrInvalidOperator indicates an operator outside the closed operator set.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrInvalidTaskType indicates a task type outside the closed set.
	ErrInvalidTaskType = errors.New("invalid task type")
)

// Query lifecycle conditions. The non-fatal ones are recorded on the result
// of a query rather than returned; only generation failures and deadline
// exhaustion are surfaced to callers as errors.
var (
	// ErrClassificationAmbiguous means no matcher group was confident enough
	// and the task type fell back to Summarization.
	ErrClassificationAmbiguous = errors.New("classification ambiguous")

	// ErrPlanUnderspecified means the planner could not extract the
	// constraints the task requires; retrieval runs vector-only.
	ErrPlanUnderspecified = errors.New("plan underspecified")

	// ErrRetrievalTimeout means a retrieval channel exceeded its timeout.
	ErrRetrievalTimeout = errors.New("retrieval timeout")

	// ErrRetrievalEmpty means neither channel produced a candidate.
	ErrRetrievalEmpty = errors.New("retrieval empty")

	// ErrContextOverflow means candidates were dropped to respect the budget.
	ErrContextOverflow = errors.New("context overflow")

	// ErrHallucinationDetected means the generated answer cited ids outside
	// the supplied context.
	ErrHallucinationDetected = errors.New("hallucination detected")

	// ErrGenerationFailure means the text generator failed or timed out.
	ErrGenerationFailure = errors.New("generation failure")

	// ErrDeadlineExceeded means the query-level deadline elapsed.
	ErrDeadlineExceeded = errors.New("query deadline exceeded")
)
