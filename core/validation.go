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

import (
	"fmt"
	"regexp"
)

// VoxelIDPattern matches voxel identifiers such as v_M3_00001.
var VoxelIDPattern = regexp.MustCompile(`\bv_[A-Za-z0-9]+_[0-9]+\b`)

// ValidateVoxel validates a Voxel according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - every attribute must be a schema field
//   - every attribute value must have the schema kind
//
// NOT validated:
//   - completeness (exports routinely omit metadata fields)
func ValidateVoxel(v *Voxel) error {
	if v == nil {
		return fmt.Errorf("%w: voxel is nil", ErrInvalidVoxel)
	}

	if v.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidVoxel, ErrEmptyVoxelID)
	}

	for name, val := range v.Attributes {
		field, ok := LookupField(name)
		if !ok {
			return fmt.Errorf("%w: %w: %q", ErrInvalidVoxel, ErrUnknownField, name)
		}
		if val.Kind != field.Kind {
			return fmt.Errorf("%w: %w: %s is %s, got %s",
				ErrInvalidVoxel, ErrFieldKindMismatch, name, field.Kind, val.Kind)
		}
	}

	return nil
}

// ValidateConstraint validates a Constraint against the schema.
//
// Validation rules:
//   - operator must be in the closed set
//   - relationship constraints need a reference and a positive hop bound
//   - attribute constraints need a schema field of matching kind
//   - ordering operators apply only to numeric fields
//   - contains applies only to categorical fields
func ValidateConstraint(c Constraint) error {
	if !c.Op.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidConstraint, ErrInvalidOperator, c.Op)
	}

	if c.IsHop() {
		if c.Reference == "" || c.Hops < 1 {
			return fmt.Errorf("%w: hop constraint needs a reference and hops >= 1", ErrInvalidConstraint)
		}
		return nil
	}

	field, ok := LookupField(c.Field)
	if !ok {
		return fmt.Errorf("%w: %w: %q", ErrInvalidConstraint, ErrUnknownField, c.Field)
	}
	if c.Value.Kind != field.Kind {
		return fmt.Errorf("%w: %w: %s", ErrInvalidConstraint, ErrFieldKindMismatch, c.Field)
	}

	switch c.Op {
	case OpLt, OpLe, OpGt, OpGe:
		if field.Kind != KindNumeric {
			return fmt.Errorf("%w: %s needs a numeric field", ErrInvalidConstraint, c.Op)
		}
	case OpContains:
		if field.Kind != KindCategorical {
			return fmt.Errorf("%w: contains needs a categorical field", ErrInvalidConstraint)
		}
	}

	return nil
}

// ValidateSpec validates every constraint of a spec.
func ValidateSpec(spec ConstraintSpec) error {
	for _, c := range spec.Constraints {
		if err := ValidateConstraint(c); err != nil {
			return err
		}
	}
	return nil
}
