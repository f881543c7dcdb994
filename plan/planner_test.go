package plan

import (
	"testing"

	"github.com/poiesic/stratum/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlanner(t *testing.T) *Planner {
	t.Helper()
	p, err := New()
	require.NoError(t, err)
	return p
}

func num(field string, op core.Operator, v float64) core.Constraint {
	return core.Constraint{Field: field, Op: op, Value: core.Number(v)}
}

func TestPlan_FilteringWithLayer(t *testing.T) {
	p := newPlanner(t)

	spec := p.Plan("Find voxels with moisture content above 40 in layer M3", core.TaskFiltering)

	assert.False(t, spec.Underspecified)
	assert.Equal(t, []core.Constraint{num(core.FieldMoisture, core.OpGt, 40)}, spec.Constraints)
	assert.Equal(t, []string{"M3"}, spec.Scope.Layers)
	assert.Empty(t, spec.Scope.Surfaces)
	assert.Equal(t, core.MatchAll, spec.Combinator)
	require.NotNil(t, spec.OrderBy)
	assert.Equal(t, core.Ordering{Field: core.FieldMoisture, Descending: true}, *spec.OrderBy)
	assert.Empty(t, spec.Targets)
}

func TestPlan_NumericComparisons(t *testing.T) {
	p := newPlanner(t)

	tests := []struct {
		query string
		want  []core.Constraint
	}{
		{"voxels with bearing capacity between 100 and 200 kPa", []core.Constraint{
			num(core.FieldBearingCapacity, core.OpGe, 100),
			num(core.FieldBearingCapacity, core.OpLe, 200),
		}},
		{"voxels with spt n-value at least 15", []core.Constraint{num(core.FieldSPT, core.OpGe, 15)}},
		{"voxels where porosity <= 0.35", []core.Constraint{num("porosity", core.OpLe, 0.35)}},
		{"voxels where density is greater than 1,800", []core.Constraint{num("density", core.OpGt, 1800)}},
		{"voxels with settlement_potential_mm under 25", []core.Constraint{num(core.FieldSettlementMM, core.OpLt, 25)}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			spec := p.Plan(tt.query, core.TaskFiltering)
			assert.Equal(t, tt.want, spec.Constraints)
			assert.Equal(t, core.MatchAll, spec.Combinator)
		})
	}
}

func TestPlan_OrderByDirection(t *testing.T) {
	p := newPlanner(t)

	spec := p.Plan("voxels with bearing capacity below 100 and moisture above 30", core.TaskFiltering)
	require.NotNil(t, spec.OrderBy)
	assert.Equal(t, core.FieldBearingCapacity, spec.OrderBy.Field)
	assert.False(t, spec.OrderBy.Descending)
}

func TestPlan_Disjunction(t *testing.T) {
	p := newPlanner(t)

	spec := p.Plan("Find voxels with moisture above 40 or bearing below 100", core.TaskFiltering)
	assert.Equal(t, core.MatchAny, spec.Combinator)
	assert.Equal(t, []core.Constraint{
		num(core.FieldMoisture, core.OpGt, 40),
		num(core.FieldBearingCapacity, core.OpLt, 100),
	}, spec.Constraints)
}

func TestPlan_Combinator(t *testing.T) {
	p := newPlanner(t)

	tests := []struct {
		name  string
		query string
		want  core.Combinator
	}{
		{"range on one field joined by and", "Find voxels with moisture above 20 and moisture below 40", core.MatchAll},
		{"between range", "voxels with moisture between 20 and 40", core.MatchAll},
		{"two fields", "voxels with bearing capacity below 100 and moisture above 30", core.MatchAll},
		{"two risk levels", "Show high risk and medium risk voxels", core.MatchAny},
		{"explicit or", "voxels with moisture above 40 or bearing below 100", core.MatchAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := p.Plan(tt.query, core.TaskFiltering)
			require.False(t, spec.Underspecified)
			assert.Equal(t, tt.want, spec.Combinator)
		})
	}

	spec := p.Plan("Find voxels with moisture above 20 and moisture below 40", core.TaskFiltering)
	assert.Equal(t, []core.Constraint{
		num(core.FieldMoisture, core.OpGt, 20),
		num(core.FieldMoisture, core.OpLt, 40),
	}, spec.Constraints)
}

func TestPlan_FlagsAndCategories(t *testing.T) {
	p := newPlanner(t)

	spec := p.Plan("Show high risk clay voxels that are not problematic", core.TaskFiltering)
	assert.Equal(t, []core.Constraint{
		{Field: core.FieldIsProblematic, Op: core.OpEq, Value: core.Flag(false)},
		{Field: core.FieldRiskLevel, Op: core.OpEq, Value: core.Text("High")},
		{Field: core.FieldMaterialType, Op: core.OpContains, Value: core.Text("Clay")},
	}, spec.Constraints)
	assert.Nil(t, spec.OrderBy)

	spec = p.Plan("Which CH voxels require dewatering?", core.TaskFiltering)
	assert.Equal(t, []core.Constraint{
		{Field: core.FieldDewatering, Op: core.OpEq, Value: core.Flag(true)},
		{Field: core.FieldSoilGroup, Op: core.OpEq, Value: core.Text("CH")},
	}, spec.Constraints)
}

func TestPlan_AttributeRetrieval(t *testing.T) {
	p := newPlanner(t)

	spec := p.Plan("What is the moisture content of v_M1_02818?", core.TaskAttributeRetrieval)
	assert.False(t, spec.Underspecified)
	assert.Equal(t, []core.Constraint{
		{Field: core.FieldVoxelID, Op: core.OpEq, Value: core.Text("v_M1_02818")},
	}, spec.Constraints)
	assert.Equal(t, []string{core.FieldMoisture}, spec.Targets)
	assert.Empty(t, spec.Scope.Layers)

	spec = p.Plan("What is the moisture content here?", core.TaskAttributeRetrieval)
	assert.True(t, spec.Underspecified)
	assert.True(t, spec.IsEmpty())
}

func TestPlan_Proximity(t *testing.T) {
	p := newPlanner(t)

	t.Run("adjacent", func(t *testing.T) {
		spec := p.Plan("Which voxels are adjacent to v_M1_00001?", core.TaskProximity)
		assert.Equal(t, []core.Constraint{
			{Op: core.OpWithinHops, Reference: "v_M1_00001", Hops: 1},
		}, spec.Constraints)
	})

	t.Run("explicit hops with canonical id", func(t *testing.T) {
		spec := p.Plan("Find voxels within 3 hops of v_m2_00010 with high moisture", core.TaskProximity)
		hops := spec.HopConstraints()
		require.Len(t, hops, 1)
		assert.Equal(t, "v_M2_00010", hops[0].Reference)
		assert.Equal(t, 3, hops[0].Hops)
		assert.Contains(t, spec.Constraints,
			core.Constraint{Field: core.FieldIsHighMoisture, Op: core.OpEq, Value: core.Flag(true)})
	})

	t.Run("near", func(t *testing.T) {
		spec := p.Plan("What is near v_M3_00100?", core.TaskProximity)
		require.Len(t, spec.HopConstraints(), 1)
		assert.Equal(t, NearHops, spec.HopConstraints()[0].Hops)
	})

	t.Run("missing reference", func(t *testing.T) {
		spec := p.Plan("Which voxels are near here?", core.TaskProximity)
		assert.True(t, spec.Underspecified)
	})

	t.Run("missing bound", func(t *testing.T) {
		spec := p.Plan("Tell me about v_M1_00001", core.TaskProximity)
		assert.True(t, spec.Underspecified)
	})
}

func TestPlan_Computation(t *testing.T) {
	p := newPlanner(t)

	spec := p.Plan("What is the average bearing capacity in Layer 03?", core.TaskComputation)
	assert.False(t, spec.Underspecified)
	assert.Empty(t, spec.Constraints)
	assert.Equal(t, []string{core.FieldBearingCapacity}, spec.Targets)
	assert.Equal(t, []string{"M3"}, spec.Scope.Layers)

	spec = p.Plan("How many voxels are there?", core.TaskComputation)
	assert.True(t, spec.Underspecified)
}

func TestPlan_Scope(t *testing.T) {
	p := newPlanner(t)

	spec := p.Plan("Summarize voxels between surface S2 and surface 3 in masses M1 and M4", core.TaskSummarization)
	assert.Equal(t, []string{"S2", "S3"}, spec.Scope.Surfaces)
	assert.Equal(t, []string{"M1", "M4"}, spec.Scope.Layers)
}

func TestPlan_Visualization(t *testing.T) {
	p := newPlanner(t)

	spec := p.Plan("Highlight v_M1_00001 and v_M1_00002", core.TaskVisualization)
	assert.Equal(t, core.MatchAny, spec.Combinator)
	assert.Len(t, spec.Constraints, 2)

	spec = p.Plan("Highlight something", core.TaskVisualization)
	assert.True(t, spec.Underspecified)
}

func TestPlan_NoRequirements(t *testing.T) {
	p := newPlanner(t)

	spec := p.Plan("Tell me about this area", core.TaskSummarization)
	assert.False(t, spec.Underspecified)
	assert.True(t, spec.IsEmpty())
}

func TestPlan_Underspecified(t *testing.T) {
	p := newPlanner(t)

	spec := p.Plan("Find voxels", core.TaskFiltering)
	assert.True(t, spec.Underspecified)
	assert.True(t, spec.IsEmpty())
	assert.Nil(t, spec.OrderBy)
}

func TestPlan_ConstraintsAreValid(t *testing.T) {
	p := newPlanner(t)

	queries := []string{
		"Find voxels with moisture content above 40 in layer M3",
		"Show high risk clay voxels that are not problematic",
		"Find voxels within 3 hops of v_M2_00010 with high moisture",
		"voxels with bearing capacity between 100 and 200 kPa",
		"Which voxels have good foundations and need ground improvement?",
	}
	for _, q := range queries {
		for _, c := range p.Plan(q, core.TaskFiltering).Constraints {
			assert.NoError(t, core.ValidateConstraint(c), q)
		}
	}
}
