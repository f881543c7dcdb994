package retrieval

import "github.com/poiesic/stratum/core"

// VectorParams tunes the vector channel for one task type.
type VectorParams struct {
	K         int     `yaml:"k" validate:"gte=0"`
	Threshold float64 `yaml:"threshold" validate:"gte=-1,lte=1"`
}

// DefaultVectorParams returns the per-task defaults. Broad tasks look
// wide with a permissive threshold; exact tasks look narrow and strict.
func DefaultVectorParams() map[core.TaskType]VectorParams {
	return map[core.TaskType]VectorParams{
		core.TaskAttributeRetrieval: {K: 5, Threshold: 0.6},
		core.TaskFiltering:          {K: 10, Threshold: 0.6},
		core.TaskReasoning:          {K: 40, Threshold: 0.35},
		core.TaskComputation:        {K: 10, Threshold: 0.6},
		core.TaskClassification:     {K: 30, Threshold: 0.4},
		core.TaskSummarization:      {K: 50, Threshold: 0.3},
		core.TaskComparison:         {K: 30, Threshold: 0.4},
		core.TaskProximity:          {K: 10, Threshold: 0.5},
		core.TaskVisualization:      {K: 20, Threshold: 0.5},
	}
}
