package plan

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/poiesic/stratum/core"
)

// Aliases maps the phrases people use for numeric attributes to schema
// field names. Schema names themselves are always accepted as well.
var Aliases = map[string]string{
	"moisture content":           core.FieldMoisture,
	"moisture":                   core.FieldMoisture,
	"water content":              core.FieldMoisture,
	"bearing capacity":           core.FieldBearingCapacity,
	"bearing":                    core.FieldBearingCapacity,
	"allowable bearing pressure": "allowable_bearing_pressure",
	"spt n-value":                core.FieldSPT,
	"spt n value":                core.FieldSPT,
	"spt":                        core.FieldSPT,
	"n-value":                    core.FieldSPT,
	"n value":                    core.FieldSPT,
	"blow count":                 core.FieldSPT,
	"settlement potential":       core.FieldSettlementMM,
	"settlement":                 core.FieldSettlementMM,
	"risk score":                 core.FieldRiskScore,
	"depth":                      "depth_below_surface",
	"elevation":                  "elevation",
	"density":                    "density",
	"unit weight":                "unit_weight",
	"porosity":                   "porosity",
	"saturation":                 "saturation",
	"permeability":               "permeability",
	"friction angle":             "friction_angle",
	"cohesion":                   "cohesion",
	"shear strength":             "undrained_shear_strength",
	"undrained shear strength":   "undrained_shear_strength",
	"liquid limit":               "liquid_limit",
	"plastic limit":              "plastic_limit",
	"plasticity index":           "plasticity_index",
	"volume":                     "voxel_volume",
}

// comparators maps comparator phrases to operators. Longer phrases are
// tried first.
var comparators = map[string]core.Operator{
	"greater than or equal to": core.OpGe,
	"less than or equal to":    core.OpLe,
	"greater than":             core.OpGt,
	"more than":                core.OpGt,
	"higher than":              core.OpGt,
	"above":                    core.OpGt,
	"over":                     core.OpGt,
	"exceeding":                core.OpGt,
	"exceeds":                  core.OpGt,
	">":                        core.OpGt,
	"at least":                 core.OpGe,
	"no less than":             core.OpGe,
	">=":                       core.OpGe,
	"less than":                core.OpLt,
	"lower than":               core.OpLt,
	"below":                    core.OpLt,
	"under":                    core.OpLt,
	"<":                        core.OpLt,
	"at most":                  core.OpLe,
	"no more than":             core.OpLe,
	"<=":                       core.OpLe,
	"equal to":                 core.OpEq,
	"equals":                   core.OpEq,
	"=":                        core.OpEq,
	"not equal to":             core.OpNe,
	"!=":                       core.OpNe,
}

// flags are the boolean risk and foundation indicators.
var flags = []struct {
	expr  *regexp.Regexp
	field string
}{
	{regexp.MustCompile(`(?i)\b(not\s+|non-?)?high[- ]moisture\b`), core.FieldIsHighMoisture},
	{regexp.MustCompile(`(?i)\b(not\s+|non-?)?low[- ]bearing\b`), core.FieldIsLowBearing},
	{regexp.MustCompile(`(?i)\b(not\s+|non-?)?problematic\b`), core.FieldIsProblematic},
	{regexp.MustCompile(`(?i)\b(not\s+|no\s+)?(requires?|requiring|needs?|needing)\s+attention\b`), core.FieldRequiresAttention},
	{regexp.MustCompile(`(?i)\b(not\s+|no\s+)?(requires?\s+|requiring\s+|needs?\s+)?dewatering\b`), core.FieldDewatering},
	{regexp.MustCompile(`(?i)\b(not\s+|no\s+)?(needs?\s+|requires?\s+)?ground improvement\b`), core.FieldGroundImprovement},
}

// categories are categorical equality vocabularies. Matches are mapped to
// the canonical value through canon.
var categories = []struct {
	expr  *regexp.Regexp
	field string
	op    core.Operator
}{
	{regexp.MustCompile(`(?i)\b(high|medium|moderate|low)[- ]risk\b`), core.FieldRiskLevel, core.OpEq},
	{regexp.MustCompile(`(?i)\brisk(?:\s+level)?(?:\s+(?:is|of|=))?\s+(high|medium|moderate|low)\b`), core.FieldRiskLevel, core.OpEq},
	{regexp.MustCompile(`(?i)\b(clay|sand|silt|gravel|peat|rock)(?:s|y)?\b`), core.FieldMaterialType, core.OpContains},
	{regexp.MustCompile(`\b(GW|GP|GM|GC|SW|SP|SM|SC|ML|MH|CL|CH|OL|OH|PT)\b`), core.FieldSoilGroup, core.OpEq},
	{regexp.MustCompile(`(?i)\b(excellent|good|suitable|marginal|poor|unsuitable)(?:\s+for)?\s+foundations?\b`), core.FieldFoundationSuit, core.OpEq},
	{regexp.MustCompile(`(?i)\bfoundation suitability(?:\s+(?:is|of|=))?\s+(excellent|good|suitable|marginal|poor|unsuitable)\b`), core.FieldFoundationSuit, core.OpEq},
	{regexp.MustCompile(`(?i)\b(shallow|deep|special)\s+foundations?\b`), core.FieldFoundationType, core.OpContains},
}

var canon = map[string]string{
	"moderate": "Medium",
}

func canonical(s string) string {
	lower := strings.ToLower(s)
	if c, ok := canon[lower]; ok {
		return c
	}
	if strings.ToUpper(s) == s && len(s) <= 2 {
		return s
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

var (
	number = `(-?\d+(?:,\d{3})*(?:\.\d+)?)`
	filler = `(?:\s+(?:is|are|was|of|values?|levels?|readings?))*`

	voxelIDExpr    = regexp.MustCompile(`(?i)\bv_m(\d+)_(\d+)\b`)
	layerExpr      = regexp.MustCompile(`(?i)\b(?:layers?|mass(?:es)?)\s+m?\s*0*(\d+)\b`)
	layerTokenExpr = regexp.MustCompile(`\bM(\d+)\b`)
	surfaceExpr    = regexp.MustCompile(`(?i)\bsurfaces?\s+s?\s*0*(\d+)\b`)
	surfaceToken   = regexp.MustCompile(`\bS(\d+)\b`)
	hopsExpr       = regexp.MustCompile(`(?i)\bwithin\s+(\d+)\s+hops?\b`)
	adjacentExpr   = regexp.MustCompile(`(?i)\b(adjacent|neighbou?rs?|neighbou?ring|next to|touching|bordering)\b`)
	nearExpr       = regexp.MustCompile(`(?i)\b(near|nearby|close to|surrounding|around|vicinity)\b`)
	disjunction    = regexp.MustCompile(`(?i)\b(or|either|any of)\b`)

	aliasExpr, comparisonExpr, betweenExpr = buildAliasExprs()
)

func buildAliasExprs() (alias, comparison, between *regexp.Regexp) {
	names := make([]string, 0, len(Aliases)+len(core.NumericFields()))
	for a := range Aliases {
		names = append(names, regexp.QuoteMeta(a))
	}
	for _, f := range core.NumericFields() {
		names = append(names, regexp.QuoteMeta(f))
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), cmp.Compare(a, b))
	})
	aliases := `(` + strings.Join(names, "|") + `)`

	ops := make([]string, 0, len(comparators))
	for c := range comparators {
		ops = append(ops, regexp.QuoteMeta(c))
	}
	slices.SortFunc(ops, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), cmp.Compare(a, b))
	})
	cmpGroup := `(` + strings.Join(ops, "|") + `)`

	alias = regexp.MustCompile(`(?i)\b` + aliases + `\b`)
	comparison = regexp.MustCompile(`(?i)\b` + aliases + `\b` + filler + `\s*` + cmpGroup + `\s*` + number)
	between = regexp.MustCompile(`(?i)\b` + aliases + `\b` + filler + `\s+between\s+` + number + `\s+and\s+` + number)
	return alias, comparison, between
}

// resolveAlias maps a matched alias back to its field name.
func resolveAlias(s string) string {
	lower := strings.ToLower(s)
	if f, ok := Aliases[lower]; ok {
		return f
	}
	return lower
}
