// Package visualize turns cited voxels into highlight marks for a 3D viewer.
//
// Marks are coloured by risk level. A Highlighter delivers them; the
// Dispatcher hands them off on a worker pool so the query path never
// waits on the viewer.
package visualize

import "github.com/poiesic/stratum/core"

// Color is an RGB highlight colour.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	Red    = Color{R: 255}
	Yellow = Color{R: 255, G: 255}
	Green  = Color{G: 255}
	Grey   = Color{R: 100, G: 100, B: 100}
)

// ColorFor maps a risk level to its highlight colour.
func ColorFor(risk string) Color {
	switch risk {
	case "High":
		return Red
	case "Medium":
		return Yellow
	case "Low":
		return Green
	default:
		return Grey
	}
}

// Mark is one highlighted voxel.
type Mark struct {
	VoxelID string `json:"voxel_id"`
	Layer   string `json:"layer,omitempty"`
	Risk    string `json:"risk,omitempty"`
	Color   Color  `json:"color"`
}

// Marks builds one mark per id in order. Voxels missing from snapshots
// are marked grey.
func Marks(ids []string, snapshots map[string]*core.Voxel) []Mark {
	marks := make([]Mark, 0, len(ids))
	for _, id := range ids {
		m := Mark{VoxelID: id, Color: Grey}
		if v := snapshots[id]; v != nil {
			m.Layer = v.Layer()
			m.Risk = v.Text(core.FieldRiskLevel)
			m.Color = ColorFor(m.Risk)
		}
		marks = append(marks, m)
	}
	return marks
}
