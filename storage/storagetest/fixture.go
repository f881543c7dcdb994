// Package storagetest provides a small voxel dataset for tests that need a
// populated store and vector index.
package storagetest

import (
	"context"
	"fmt"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
)

// Voxel builds a voxel with the attributes the fixture queries use.
func Voxel(id, layer string, moisture, bearing float64, risk string) *core.Voxel {
	return &core.Voxel{
		ID: id,
		Attributes: map[string]core.Value{
			core.FieldMassID:          core.Text(layer),
			core.FieldMaterialType:    core.Text(material(moisture)),
			core.FieldMoisture:        core.Number(moisture),
			core.FieldBearingCapacity: core.Number(bearing),
			core.FieldRiskLevel:       core.Text(risk),
			core.FieldIsHighMoisture:  core.Flag(moisture > 40),
			core.FieldIsLowBearing:    core.Flag(bearing < 100),
		},
	}
}

func material(moisture float64) string {
	if moisture > 40 {
		return "Clay"
	}
	return "Sand"
}

// Line returns ten voxels: v_M3_00001..v_M3_00005 joined east-west in a
// line, with v_M3_00001, v_M3_00003 and v_M3_00004 above 40% moisture,
// plus v_M1_00001..v_M1_00005 in an unconnected line. v_M1_00002 and
// v_M1_00005 are above 40% moisture.
func Line() ([]*core.Voxel, []core.Neighbor) {
	voxels := []*core.Voxel{
		Voxel("v_M3_00001", "M3", 45, 80, "High"),
		Voxel("v_M3_00002", "M3", 30, 150, "Low"),
		Voxel("v_M3_00003", "M3", 50, 90, "High"),
		Voxel("v_M3_00004", "M3", 42, 120, "Medium"),
		Voxel("v_M3_00005", "M3", 20, 200, "Low"),
		Voxel("v_M1_00001", "M1", 10, 300, "Low"),
		Voxel("v_M1_00002", "M1", 55, 60, "High"),
		Voxel("v_M1_00003", "M1", 15, 280, "Low"),
		Voxel("v_M1_00004", "M1", 25, 240, "Low"),
		Voxel("v_M1_00005", "M1", 41, 110, "Medium"),
	}

	var edges []core.Neighbor
	for _, layer := range []string{"M3", "M1"} {
		for i := 1; i < 5; i++ {
			a := fmt.Sprintf("v_%s_%05d", layer, i)
			b := fmt.Sprintf("v_%s_%05d", layer, i+1)
			edges = append(edges,
				core.Neighbor{From: a, To: b, Direction: core.DirectionEast, Distance: 1},
				core.Neighbor{From: b, To: a, Direction: core.DirectionWest, Distance: 1},
			)
		}
	}
	return voxels, edges
}

// Seed stores voxels and edges and, when index and embedder are given,
// indexes the embedding of each voxel's description.
func Seed(ctx context.Context, store storage.VoxelStore, index storage.VectorIndex, embedder ai.Embedder, voxels []*core.Voxel, edges []core.Neighbor) error {
	if err := store.AddVoxels(ctx, voxels...); err != nil {
		return err
	}
	if len(edges) > 0 {
		if err := store.AddNeighbors(ctx, edges...); err != nil {
			return err
		}
	}
	if index == nil || embedder == nil {
		return nil
	}

	texts := make([]string, len(voxels))
	for i, v := range voxels {
		texts[i] = core.Describe(v)
	}
	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	embeddings := make([]*core.Embedding, len(voxels))
	for i, v := range voxels {
		embeddings[i] = &core.Embedding{
			VoxelID:     v.ID,
			Vector:      vectors[i],
			ContentHash: core.IDFromContent(texts[i]),
		}
	}
	return index.Upsert(ctx, embeddings...)
}
