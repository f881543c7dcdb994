package core

// SchemaVersion identifies the attribute contract. Projection tables and
// serialized voxels are only valid against the version they were built for.
const SchemaVersion = "voxel-attrs/v1"

// ValueKind is the type of an attribute value.
type ValueKind uint8

const (
	// KindNumeric is a float64 attribute.
	KindNumeric ValueKind = iota + 1
	// KindCategorical is a string attribute.
	KindCategorical
	// KindBoolean is a true/false attribute.
	KindBoolean
)

func (k ValueKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// FieldGroup categorizes attributes for projection and display.
type FieldGroup string

const (
	GroupIdentification FieldGroup = "identification"
	GroupMaterial       FieldGroup = "material"
	GroupPosition       FieldGroup = "position"
	GroupGeological     FieldGroup = "geological"
	GroupPhysical       FieldGroup = "physical"
	GroupStrength       FieldGroup = "strength"
	GroupSettlement     FieldGroup = "settlement"
	GroupRisk           FieldGroup = "risk"
	GroupFoundation     FieldGroup = "foundation"
	GroupConsolidation  FieldGroup = "consolidation"
	GroupMetadata       FieldGroup = "metadata"
)

// Field describes one named attribute of the schema.
type Field struct {
	Name  string
	Kind  ValueKind
	Group FieldGroup
	Unit  string
}

// Frequently referenced field names.
const (
	FieldVoxelID           = "voxel_id"
	FieldMaterialType      = "material_type"
	FieldMaterialSubtype   = "material_subtype"
	FieldSoilGroup         = "soil_group"
	FieldPositionX         = "position_x"
	FieldPositionY         = "position_y"
	FieldPositionZ         = "position_z"
	FieldMassID            = "mass_id"
	FieldMassName          = "mass_name"
	FieldTopSurface        = "top_surface_id"
	FieldBottomSurface     = "bottom_surface_id"
	FieldMoisture          = "moisture_content"
	FieldBearingCapacity   = "bearing_capacity"
	FieldSPT               = "spt_n_value"
	FieldRiskLevel         = "overall_risk_level"
	FieldRiskScore         = "overall_risk_score"
	FieldFoundationSuit    = "foundation_suitability"
	FieldFoundationType    = "recommended_foundation_type"
	FieldIsProblematic     = "is_problematic"
	FieldIsHighMoisture    = "is_high_moisture"
	FieldIsLowBearing      = "is_low_bearing"
	FieldRequiresAttention = "requires_attention"
	FieldGroundImprovement = "ground_improvement_needed"
	FieldDewatering        = "dewatering_required"
	FieldSettlementMM      = "settlement_potential_mm"
)

// Schema is the fixed, ordered attribute contract of a voxel.
var Schema = []Field{
	{Name: FieldVoxelID, Kind: KindCategorical, Group: GroupIdentification},
	{Name: "project_id", Kind: KindCategorical, Group: GroupIdentification},

	{Name: FieldMaterialType, Kind: KindCategorical, Group: GroupMaterial},
	{Name: FieldMaterialSubtype, Kind: KindCategorical, Group: GroupMaterial},
	{Name: FieldSoilGroup, Kind: KindCategorical, Group: GroupMaterial},
	{Name: "texture", Kind: KindCategorical, Group: GroupMaterial},
	{Name: "color", Kind: KindCategorical, Group: GroupMaterial},

	{Name: FieldPositionX, Kind: KindNumeric, Group: GroupPosition, Unit: "m"},
	{Name: FieldPositionY, Kind: KindNumeric, Group: GroupPosition, Unit: "m"},
	{Name: FieldPositionZ, Kind: KindNumeric, Group: GroupPosition, Unit: "m"},
	{Name: "elevation", Kind: KindNumeric, Group: GroupPosition, Unit: "m"},
	{Name: "depth_below_surface", Kind: KindNumeric, Group: GroupPosition, Unit: "m"},
	{Name: "voxel_volume", Kind: KindNumeric, Group: GroupPosition, Unit: "m3"},

	{Name: FieldMassID, Kind: KindCategorical, Group: GroupGeological},
	{Name: FieldMassName, Kind: KindCategorical, Group: GroupGeological},
	{Name: FieldTopSurface, Kind: KindCategorical, Group: GroupGeological},
	{Name: FieldBottomSurface, Kind: KindCategorical, Group: GroupGeological},

	{Name: FieldMoisture, Kind: KindNumeric, Group: GroupPhysical, Unit: "%"},
	{Name: "density", Kind: KindNumeric, Group: GroupPhysical, Unit: "kg/m3"},
	{Name: "unit_weight", Kind: KindNumeric, Group: GroupPhysical, Unit: "kN/m3"},
	{Name: "porosity", Kind: KindNumeric, Group: GroupPhysical},
	{Name: "saturation", Kind: KindNumeric, Group: GroupPhysical, Unit: "%"},
	{Name: "permeability", Kind: KindNumeric, Group: GroupPhysical, Unit: "m/s"},

	{Name: FieldBearingCapacity, Kind: KindNumeric, Group: GroupStrength, Unit: "kPa"},
	{Name: "allowable_bearing_pressure", Kind: KindNumeric, Group: GroupStrength, Unit: "kPa"},
	{Name: FieldSPT, Kind: KindNumeric, Group: GroupStrength},
	{Name: "friction_angle", Kind: KindNumeric, Group: GroupStrength, Unit: "deg"},
	{Name: "cohesion", Kind: KindNumeric, Group: GroupStrength, Unit: "kPa"},
	{Name: "undrained_shear_strength", Kind: KindNumeric, Group: GroupStrength, Unit: "kPa"},

	{Name: FieldSettlementMM, Kind: KindNumeric, Group: GroupSettlement, Unit: "mm"},
	{Name: "settlement_risk", Kind: KindCategorical, Group: GroupSettlement},

	{Name: FieldRiskLevel, Kind: KindCategorical, Group: GroupRisk},
	{Name: FieldRiskScore, Kind: KindNumeric, Group: GroupRisk},
	{Name: "bearing_risk", Kind: KindCategorical, Group: GroupRisk},
	{Name: FieldIsProblematic, Kind: KindBoolean, Group: GroupRisk},
	{Name: FieldIsHighMoisture, Kind: KindBoolean, Group: GroupRisk},
	{Name: FieldIsLowBearing, Kind: KindBoolean, Group: GroupRisk},
	{Name: FieldRequiresAttention, Kind: KindBoolean, Group: GroupRisk},

	{Name: FieldFoundationSuit, Kind: KindCategorical, Group: GroupFoundation},
	{Name: FieldFoundationType, Kind: KindCategorical, Group: GroupFoundation},
	{Name: "excavation_stability", Kind: KindCategorical, Group: GroupFoundation},
	{Name: FieldGroundImprovement, Kind: KindBoolean, Group: GroupFoundation},
	{Name: FieldDewatering, Kind: KindBoolean, Group: GroupFoundation},

	{Name: "liquid_limit", Kind: KindNumeric, Group: GroupConsolidation, Unit: "%"},
	{Name: "plastic_limit", Kind: KindNumeric, Group: GroupConsolidation, Unit: "%"},
	{Name: "plasticity_index", Kind: KindNumeric, Group: GroupConsolidation},

	{Name: "data_source", Kind: KindCategorical, Group: GroupMetadata},
	{Name: "data_quality", Kind: KindCategorical, Group: GroupMetadata},
	{Name: "confidence_level", Kind: KindCategorical, Group: GroupMetadata},
	{Name: "data_version", Kind: KindCategorical, Group: GroupMetadata},
	{Name: "created_date", Kind: KindCategorical, Group: GroupMetadata},
}

var schemaIndex = func() map[string]Field {
	m := make(map[string]Field, len(Schema))
	for _, f := range Schema {
		m[f.Name] = f
	}
	return m
}()

// LookupField returns the schema entry for name.
func LookupField(name string) (Field, bool) {
	f, ok := schemaIndex[name]
	return f, ok
}

// FieldNames returns all schema field names in schema order.
func FieldNames() []string {
	names := make([]string, len(Schema))
	for i, f := range Schema {
		names[i] = f.Name
	}
	return names
}

// FieldsInGroups returns the names of all fields belonging to any of groups,
// in schema order.
func FieldsInGroups(groups ...FieldGroup) []string {
	want := make(map[FieldGroup]bool, len(groups))
	for _, g := range groups {
		want[g] = true
	}
	var names []string
	for _, f := range Schema {
		if want[f.Group] {
			names = append(names, f.Name)
		}
	}
	return names
}

// NumericFields returns the names of all numeric fields in schema order.
func NumericFields() []string {
	var names []string
	for _, f := range Schema {
		if f.Kind == KindNumeric {
			names = append(names, f.Name)
		}
	}
	return names
}
