package classify

import "github.com/poiesic/stratum/core"

// voxelRef matches a voxel id such as v_M1_02818.
const voxelRef = `\bv_m\d+_\d+\b`

// DefaultPatterns returns a fresh copy of the built-in matcher groups.
func DefaultPatterns() map[core.TaskType][]Pattern {
	return map[core.TaskType][]Pattern{
		core.TaskAttributeRetrieval: {
			P(`\b(what is|what's|what are|give me|show me|get|tell me)\b.*`+voxelRef, 0.9),
			P(`\b(properties|attributes|details|value)\s+(of|for)\b`, 0.5),
			P(voxelRef, 0.3),
		},
		core.TaskFiltering: {
			P(`\b(find|show|list|which|get|return|select)\b.*\bvoxels?\b`, 0.6),
			P(`\b(above|below|over|under|greater than|more than|higher than|less than|lower than|exceeding|at least|at most|between)\s+-?\d`, 0.8),
			P(`[<>]=?\s*-?\d`, 0.8),
			P(`\bwhere\b`, 0.3),
		},
		core.TaskReasoning: {
			P(`\b(why|explain|reason|causes?|caused|because)\b`, 0.75),
			P(`\b(should|recommend|implications?|consequences?|risk of)\b`, 0.5),
		},
		core.TaskComputation: {
			P(`\b(average|mean|sum|total|count|how many|maximum|minimum|max|min|median|standard deviation|calculate|compute)\b`, 0.85),
		},
		core.TaskClassification: {
			P(`\b(classify|categori[sz]e|what type of|what kind of|which category|grouped by)\b`, 0.8),
		},
		core.TaskSummarization: {
			P(`\b(summari[sz]e|summary|overview)\b`, 0.8),
			P(`\b(tell me about|describe|characteri[sz]e)\b`, 0.3),
		},
		core.TaskComparison: {
			P(`\b(compare|comparison|versus|vs\.?|difference|differ|contrast)\b`, 0.85),
			P(`\bbetween\s+(layers?|masses|materials?|m\d+\s+and\s+m\d+)\b`, 0.5),
		},
		core.TaskProximity: {
			P(`\b(near|nearby|adjacent|neighbou?rs?|neighbou?ring|close to|surrounding|within\s+\d+\s+hops?)\b`, 0.8),
			P(`\b(shortest path|path between|connected to)\b`, 0.6),
		},
		core.TaskVisualization: {
			P(`\b(highlight|visuali[sz]e|display|render|plot|colou?r)\b`, 0.85),
		},
	}
}
