package core

import (
	"fmt"
	"strings"
)

// Describe renders the natural-language description of a voxel that is
// embedded into the vector index. The text is stable for identical
// attributes so its content hash detects stale embeddings.
func Describe(v *Voxel) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Voxel %s", v.ID)
	if layer := v.Layer(); layer != "" {
		fmt.Fprintf(&b, " in layer %s", layer)
		if name := v.Text(FieldMassName); name != "" {
			fmt.Fprintf(&b, " (%s)", name)
		}
	}
	b.WriteString(".")

	if mat := v.Text(FieldMaterialType); mat != "" {
		fmt.Fprintf(&b, " Material: %s", mat)
		if sub := v.Text(FieldMaterialSubtype); sub != "" {
			fmt.Fprintf(&b, ", %s", strings.ToLower(sub))
		}
		if sg := v.Text(FieldSoilGroup); sg != "" {
			fmt.Fprintf(&b, ", soil group %s", sg)
		}
		b.WriteString(".")
	}

	top, bottom := v.Text(FieldTopSurface), v.Text(FieldBottomSurface)
	if top != "" || bottom != "" {
		fmt.Fprintf(&b, " Between surfaces %s and %s.", top, bottom)
	}

	var props []string
	if m, ok := v.Number(FieldMoisture); ok {
		props = append(props, fmt.Sprintf("moisture %.1f%%", m))
	}
	if bc, ok := v.Number(FieldBearingCapacity); ok {
		props = append(props, fmt.Sprintf("bearing capacity %.0f kPa", bc))
	}
	if n, ok := v.Number(FieldSPT); ok {
		props = append(props, fmt.Sprintf("SPT N %.0f", n))
	}
	if s, ok := v.Number(FieldSettlementMM); ok {
		props = append(props, fmt.Sprintf("settlement potential %.0f mm", s))
	}
	if len(props) > 0 {
		fmt.Fprintf(&b, " Properties: %s.", strings.Join(props, ", "))
	}

	if risk := v.Text(FieldRiskLevel); risk != "" {
		fmt.Fprintf(&b, " Risk level %s.", risk)
	}
	if suit := v.Text(FieldFoundationSuit); suit != "" {
		fmt.Fprintf(&b, " Foundation suitability %s", suit)
		if ft := v.Text(FieldFoundationType); ft != "" {
			fmt.Fprintf(&b, ", recommended %s foundation", strings.ToLower(ft))
		}
		b.WriteString(".")
	}

	var flags []string
	if v.Flag(FieldIsHighMoisture) {
		flags = append(flags, "high moisture")
	}
	if v.Flag(FieldIsLowBearing) {
		flags = append(flags, "low bearing")
	}
	if v.Flag(FieldIsProblematic) {
		flags = append(flags, "problematic")
	}
	if v.Flag(FieldDewatering) {
		flags = append(flags, "dewatering required")
	}
	if v.Flag(FieldGroundImprovement) {
		flags = append(flags, "ground improvement needed")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, " Flags: %s.", strings.Join(flags, ", "))
	}

	return b.String()
}
