package storage

import (
	"testing"
	"time"

	"github.com/poiesic/stratum/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalVoxel(t *testing.T) {
	tests := []struct {
		name  string
		voxel *core.Voxel
	}{
		{
			name:  "no attributes",
			voxel: &core.Voxel{ID: "v_M1_00001"},
		},
		{
			name: "mixed kinds",
			voxel: &core.Voxel{
				ID: "v_M3_00007",
				Attributes: map[string]core.Value{
					core.FieldMassID:          core.Text("M3"),
					core.FieldMoisture:        core.Number(47.25),
					core.FieldBearingCapacity: core.Number(85),
					core.FieldIsHighMoisture:  core.Flag(true),
					core.FieldIsLowBearing:    core.Flag(false),
				},
			},
		},
		{
			name: "unicode categorical",
			voxel: &core.Voxel{
				ID:         "v_M2_00003",
				Attributes: map[string]core.Value{"mass_name": core.Text("Argile à silex")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalVoxel(tt.voxel)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalVoxel(data)
			require.NoError(t, err)
			assert.Equal(t, tt.voxel.ID, decoded.ID)
			if len(tt.voxel.Attributes) == 0 {
				assert.Empty(t, decoded.Attributes)
			} else {
				assert.Equal(t, tt.voxel.Attributes, decoded.Attributes)
			}
		})
	}
}

func TestUnmarshalVoxel_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalVoxel(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalEmbedding(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	embedding := &core.Embedding{
		VoxelID:     "v_M1_00001",
		Vector:      []float32{0.1, 0.2, 0.3, 0.4},
		ContentHash: core.IDFromContent("Voxel v_M1_00001."),
		UpdatedAt:   now,
	}

	decoded, err := UnmarshalEmbedding(MarshalEmbedding(embedding))
	require.NoError(t, err)
	assert.Equal(t, embedding.VoxelID, decoded.VoxelID)
	assert.Equal(t, embedding.Vector, decoded.Vector)
	assert.Equal(t, embedding.ContentHash, decoded.ContentHash)
	assert.True(t, embedding.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestMarshalUnmarshalNeighbor(t *testing.T) {
	edge := core.Neighbor{From: "v_M1_00001", To: "v_M2_00001", Direction: core.DirectionBelow, Distance: 1.2}

	decoded, err := UnmarshalNeighbor(MarshalNeighbor(edge))
	require.NoError(t, err)
	assert.Equal(t, edge, decoded)
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	checkpoint := &core.Checkpoint{
		ProcessorType: "voxel_reembed",
		LastVoxelID:   "v_M4_00120",
		UpdatedAt:     now,
	}

	decoded, err := UnmarshalCheckpoint(MarshalCheckpoint(checkpoint))
	require.NoError(t, err)
	assert.Equal(t, checkpoint.ProcessorType, decoded.ProcessorType)
	assert.Equal(t, checkpoint.LastVoxelID, decoded.LastVoxelID)
	assert.True(t, checkpoint.UpdatedAt.Equal(decoded.UpdatedAt))
}
