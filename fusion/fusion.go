// Package fusion merges graph and vector candidates into one ranking.
package fusion

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/poiesic/stratum/core"
)

// ErrInvalidWeights is returned when weights do not favour the graph channel.
var ErrInvalidWeights = errors.New("fusion weights must satisfy graph > vector >= 0")

// Weights are the per-task channel weights.
type Weights struct {
	Graph  float64 `yaml:"graph"`
	Vector float64 `yaml:"vector"`
	// GraphDominant switches to (1, 0) whenever the plan has constraints.
	GraphDominant bool `yaml:"graph_dominant"`
}

// Validate checks graph > vector >= 0.
func (w Weights) Validate() error {
	if w.Vector < 0 || w.Graph <= w.Vector {
		return fmt.Errorf("%w: graph=%v vector=%v", ErrInvalidWeights, w.Graph, w.Vector)
	}
	return nil
}

// For returns the weights to use for spec.
func (w Weights) For(spec core.ConstraintSpec) Weights {
	if w.GraphDominant && !spec.IsEmpty() {
		return Weights{Graph: 1, Vector: 0, GraphDominant: true}
	}
	return w
}

// VectorOnly weights rank by similarity alone. They apply when the graph
// channel was skipped or failed and no structured evidence exists.
func VectorOnly() Weights {
	return Weights{Graph: 0, Vector: 1}
}

// DefaultWeights returns the per-task defaults. Exact tasks lean on the
// graph channel; descriptive tasks give semantic similarity more say.
func DefaultWeights() map[core.TaskType]Weights {
	return map[core.TaskType]Weights{
		core.TaskAttributeRetrieval: {Graph: 0.9, Vector: 0.1},
		core.TaskFiltering:          {Graph: 0.85, Vector: 0.15, GraphDominant: true},
		core.TaskReasoning:          {Graph: 0.6, Vector: 0.4},
		core.TaskComputation:        {Graph: 0.8, Vector: 0.2},
		core.TaskClassification:     {Graph: 0.7, Vector: 0.3},
		core.TaskSummarization:      {Graph: 0.55, Vector: 0.45},
		core.TaskComparison:         {Graph: 0.7, Vector: 0.3},
		core.TaskProximity:          {Graph: 0.9, Vector: 0.1, GraphDominant: true},
		core.TaskVisualization:      {Graph: 0.8, Vector: 0.2},
	}
}

// Fuse unions both channels by voxel ID and ranks the result by combined
// score descending, then ID ascending. Negative similarities count as 0
// and candidates whose combined score is 0 are dropped. A positive budget
// caps the result and sets Truncated when anything was cut.
func Fuse(graph, vector []core.Candidate, w Weights, budget int) core.FusedResult {
	merged := make(map[string]*core.FusedCandidate, len(graph)+len(vector))

	for _, c := range graph {
		fc, ok := merged[c.ID]
		if !ok {
			fc = &core.FusedCandidate{ID: c.ID, Source: core.SourceGraph, Snapshot: c.Snapshot}
			merged[c.ID] = fc
		}
		fc.GraphScore = max(fc.GraphScore, clamp(c.Score))
	}

	for _, c := range vector {
		fc, ok := merged[c.ID]
		switch {
		case !ok:
			fc = &core.FusedCandidate{ID: c.ID, Source: core.SourceVector, Snapshot: c.Snapshot}
			merged[c.ID] = fc
		case fc.Source == core.SourceGraph:
			fc.Source = core.SourceBoth
		}
		if fc.Snapshot == nil {
			fc.Snapshot = c.Snapshot
		}
		fc.VectorScore = max(fc.VectorScore, clamp(c.Score))
	}

	out := make([]core.FusedCandidate, 0, len(merged))
	for _, fc := range merged {
		fc.Score = w.Graph*fc.GraphScore + w.Vector*fc.VectorScore
		if fc.Score <= 0 {
			continue
		}
		out = append(out, *fc)
	}

	slices.SortFunc(out, func(a, b core.FusedCandidate) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.ID, b.ID))
	})

	result := core.FusedResult{Candidates: out}
	if budget > 0 && len(out) > budget {
		result.Candidates = out[:budget:budget]
		result.Truncated = true
	}
	return result
}

func clamp(score float64) float64 {
	return min(max(score, 0), 1)
}
