package budget

import (
	"slices"

	"github.com/poiesic/stratum/core"
)

// Projection maps every schema field to included (true) or excluded
// (false) for one task type.
type Projection map[string]bool

// Fields returns the included fields in schema order.
func (p Projection) Fields() []string {
	var out []string
	for _, f := range core.Schema {
		if p[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

// project builds a total projection that includes every field of groups,
// the explicitly named extra fields and voxel_id.
func project(groups []core.FieldGroup, extra ...string) Projection {
	p := make(Projection, len(core.Schema))
	for _, f := range core.Schema {
		p[f.Name] = slices.Contains(groups, f.Group) || slices.Contains(extra, f.Name)
	}
	p[core.FieldVoxelID] = true
	return p
}

// numericProjection includes voxel_id, the layer fields and every numeric
// field outside groups excluded.
func numericProjection(excluded ...core.FieldGroup) Projection {
	p := make(Projection, len(core.Schema))
	for _, f := range core.Schema {
		p[f.Name] = f.Kind == core.KindNumeric && !slices.Contains(excluded, f.Group)
	}
	p[core.FieldVoxelID] = true
	p[core.FieldMassID] = true
	return p
}

// DefaultProjections returns the projection table for schema
// core.SchemaVersion. Every task maps every schema field.
func DefaultProjections() map[core.TaskType]Projection {
	return map[core.TaskType]Projection{
		core.TaskAttributeRetrieval: project([]core.FieldGroup{
			core.GroupIdentification, core.GroupMaterial, core.GroupPosition,
			core.GroupGeological, core.GroupPhysical, core.GroupStrength,
			core.GroupSettlement, core.GroupRisk, core.GroupFoundation,
			core.GroupConsolidation,
		}),
		core.TaskFiltering: project([]core.FieldGroup{
			core.GroupMaterial, core.GroupGeological, core.GroupPhysical,
			core.GroupStrength, core.GroupRisk,
		}),
		core.TaskReasoning: project([]core.FieldGroup{
			core.GroupMaterial, core.GroupGeological, core.GroupPhysical,
			core.GroupStrength, core.GroupSettlement, core.GroupRisk,
			core.GroupFoundation,
		}),
		core.TaskComputation: numericProjection(core.GroupPosition),
		core.TaskClassification: project([]core.FieldGroup{
			core.GroupMaterial, core.GroupGeological, core.GroupPhysical,
			core.GroupRisk, core.GroupConsolidation,
		}),
		core.TaskSummarization: project([]core.FieldGroup{
			core.GroupMaterial, core.GroupGeological, core.GroupRisk,
			core.GroupFoundation,
		}, core.FieldMoisture, core.FieldBearingCapacity, core.FieldSPT, core.FieldSettlementMM),
		core.TaskComparison: numericProjection(core.GroupPosition, core.GroupConsolidation),
		core.TaskProximity: project([]core.FieldGroup{
			core.GroupPosition, core.GroupGeological, core.GroupMaterial,
		}, core.FieldRiskLevel, core.FieldMoisture, core.FieldBearingCapacity),
		core.TaskVisualization: project([]core.FieldGroup{
			core.GroupGeological, core.GroupRisk,
		}, core.FieldPositionX, core.FieldPositionY, core.FieldPositionZ, core.FieldMaterialType),
	}
}
