package core

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a 64-bit content hash.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Value is a single typed attribute value.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Bool bool
}

// Number creates a numeric value.
func Number(f float64) Value {
	return Value{Kind: KindNumeric, Num: f}
}

// Text creates a categorical value.
func Text(s string) Value {
	return Value{Kind: KindCategorical, Str: s}
}

// Flag creates a boolean value.
func Flag(b bool) Value {
	return Value{Kind: KindBoolean, Bool: b}
}

// IsZero reports whether the value was never set.
func (v Value) IsZero() bool {
	return v.Kind == 0
}

// String renders the value the way it is shown in prompts.
func (v Value) String() string {
	switch v.Kind {
	case KindNumeric:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindCategorical:
		return v.Str
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// ParseValue parses raw text as a value of the given kind.
func ParseValue(kind ValueKind, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case KindNumeric:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case KindBoolean:
		switch strings.ToLower(raw) {
		case "true", "yes", "y", "1":
			return Flag(true), nil
		case "false", "no", "n", "0":
			return Flag(false), nil
		}
		return Value{}, strconv.ErrSyntax
	default:
		return Text(raw), nil
	}
}

// Voxel is one attributed volumetric element of the dataset.
// Voxels are immutable once ingested.
type Voxel struct {
	ID         string
	Attributes map[string]Value
}

// Get returns the value of field. voxel_id is always available.
func (v *Voxel) Get(field string) (Value, bool) {
	if field == FieldVoxelID {
		return Text(v.ID), true
	}
	val, ok := v.Attributes[field]
	if !ok || val.IsZero() {
		return Value{}, false
	}
	return val, true
}

// Number returns a numeric attribute.
func (v *Voxel) Number(field string) (float64, bool) {
	val, ok := v.Get(field)
	if !ok || val.Kind != KindNumeric {
		return 0, false
	}
	return val.Num, true
}

// Text returns a categorical attribute, or "" when unset.
func (v *Voxel) Text(field string) string {
	val, ok := v.Get(field)
	if !ok || val.Kind != KindCategorical {
		return ""
	}
	return val.Str
}

// Flag returns a boolean attribute, false when unset.
func (v *Voxel) Flag(field string) bool {
	val, ok := v.Get(field)
	return ok && val.Kind == KindBoolean && val.Bool
}

// Layer returns the geological mass the voxel belongs to (M1..M4).
func (v *Voxel) Layer() string {
	return v.Text(FieldMassID)
}

// Position returns the voxel centre.
func (v *Voxel) Position() (x, y, z float64, ok bool) {
	var okx, oky, okz bool
	x, okx = v.Number(FieldPositionX)
	y, oky = v.Number(FieldPositionY)
	z, okz = v.Number(FieldPositionZ)
	return x, y, z, okx && oky && okz
}

// Direction is the dominant axis from one voxel to an adjacent one.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
	DirectionNorth Direction = "north"
	DirectionSouth Direction = "south"
	DirectionEast  Direction = "east"
	DirectionWest  Direction = "west"
	DirectionSame  Direction = "same"
)

// RelationNeighbor matches any NEIGHBOR edge regardless of direction.
const RelationNeighbor = "NEIGHBOR"

// Neighbor is a directed adjacency edge between two voxels.
type Neighbor struct {
	From      string
	To        string
	Direction Direction
	Distance  float64
}

// Embedding is the stored vector of a voxel's description.
type Embedding struct {
	VoxelID     string
	Vector      []float32
	ContentHash ID // IDFromContent of the embedded description
	UpdatedAt   time.Time
}

// Checkpoint records how far a long-running processor got.
type Checkpoint struct {
	ProcessorType string
	LastVoxelID   string
	UpdatedAt     time.Time
}
