package classify

import (
	"testing"

	"github.com/poiesic/stratum/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	tests := []struct {
		query string
		want  core.TaskType
	}{
		{"Find voxels with moisture content above 40 in layer M3", core.TaskFiltering},
		{"List voxels where bearing capacity < 100", core.TaskFiltering},
		{"What is the moisture content of v_M1_02818?", core.TaskAttributeRetrieval},
		{"What is the average bearing capacity in layer M2?", core.TaskComputation},
		{"How many voxels are problematic?", core.TaskComputation},
		{"Compare moisture between M1 and M2", core.TaskComparison},
		{"Which voxels are adjacent to v_M1_00001?", core.TaskProximity},
		{"Highlight voxels with high risk", core.TaskVisualization},
		{"Why is layer M3 unsuitable for shallow foundations?", core.TaskReasoning},
		{"Classify the soil in layer M2", core.TaskClassification},
		{"Summarize layer M4", core.TaskSummarization},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := c.Classify(tt.query)
			assert.Equal(t, tt.want, got.Task)
			assert.False(t, got.LowConfidence)
			assert.GreaterOrEqual(t, got.Confidence, DefaultMinConfidence)
			assert.LessOrEqual(t, got.Confidence, 1.0)
		})
	}
}

func TestClassify_LowConfidenceFallsBack(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	for _, query := range []string{"Tell me about this area", "hello", ""} {
		t.Run(query, func(t *testing.T) {
			got := c.Classify(query)
			assert.Equal(t, core.TaskSummarization, got.Task)
			assert.True(t, got.LowConfidence)
			assert.Less(t, got.Confidence, DefaultMinConfidence)
		})
	}
}

func TestClassify_CombinesEvidence(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	scores := c.Scores("Find voxels with moisture above 40")
	// 1 - (1-0.6)(1-0.8)
	assert.InDelta(t, 0.92, scores[core.TaskFiltering], 1e-9)
	assert.Zero(t, scores[core.TaskVisualization])
}

func TestClassify_TieBreaksByPriority(t *testing.T) {
	c, err := New(
		WithPatterns(core.TaskProximity, P(`\bquux\b`, 0.7)),
		WithPatterns(core.TaskFiltering, P(`\bquux\b`, 0.7)),
	)
	require.NoError(t, err)

	got := c.Classify("quux")
	assert.Equal(t, core.TaskFiltering, got.Task)
}

func TestClassify_Deterministic(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	q := "Compare the average moisture near v_M2_00010"
	first := c.Classify(q)
	for range 20 {
		assert.Equal(t, first, c.Classify(q))
	}
}

func TestNew_Options(t *testing.T) {
	t.Run("custom threshold", func(t *testing.T) {
		c, err := New(WithMinConfidence(0.95))
		require.NoError(t, err)
		got := c.Classify("Find voxels with moisture above 40")
		assert.True(t, got.LowConfidence)
		assert.Equal(t, core.TaskSummarization, got.Task)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := New(WithMinConfidence(1.5))
		assert.ErrorIs(t, err, ErrInvalidConfidence)
	})

	t.Run("invalid pattern weight", func(t *testing.T) {
		_, err := New(WithPatterns(core.TaskFiltering, P(`x`, 2)))
		assert.ErrorIs(t, err, ErrInvalidPattern)
	})

	t.Run("invalid task", func(t *testing.T) {
		_, err := New(WithPatterns(core.TaskType(42), P(`x`, 0.5)))
		assert.ErrorIs(t, err, core.ErrInvalidTaskType)
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		c, err := New(WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, c.logger)
	})
}
