package core

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persisted records. Each one follows the
// mus.Serializer shape: Marshal writes into a buffer sized by Size and
// returns the bytes written; Unmarshal returns the value and bytes read.
var (
	IDMUS         = idMUS{}
	ValueMUS      = valueMUS{}
	VoxelMUS      = voxelMUS{}
	VectorMUS     = vectorMUS{}
	EmbeddingMUS  = embeddingMUS{}
	NeighborMUS   = neighborMUS{}
	CheckpointMUS = checkpointMUS{}
)

var errInvalidLength = errors.New("invalid length prefix")

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

type valueMUS struct{}

func (valueMUS) Marshal(v Value, bs []byte) (n int) {
	n = varint.Int.Marshal(int(v.Kind), bs)
	switch v.Kind {
	case KindNumeric:
		n += raw.Float64.Marshal(v.Num, bs[n:])
	case KindBoolean:
		n += ord.Bool.Marshal(v.Bool, bs[n:])
	default:
		n += ord.String.Marshal(v.Str, bs[n:])
	}
	return n
}

func (valueMUS) Unmarshal(bs []byte) (v Value, n int, err error) {
	kind, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Kind = ValueKind(kind)
	var n1 int
	switch v.Kind {
	case KindNumeric:
		v.Num, n1, err = raw.Float64.Unmarshal(bs[n:])
	case KindBoolean:
		v.Bool, n1, err = ord.Bool.Unmarshal(bs[n:])
	default:
		v.Str, n1, err = ord.String.Unmarshal(bs[n:])
	}
	n += n1
	return
}

func (valueMUS) Size(v Value) (size int) {
	size = varint.Int.Size(int(v.Kind))
	switch v.Kind {
	case KindNumeric:
		size += raw.Float64.Size(v.Num)
	case KindBoolean:
		size += ord.Bool.Size(v.Bool)
	default:
		size += ord.String.Size(v.Str)
	}
	return
}

type voxelMUS struct{}

// Attribute keys are written sorted so identical voxels encode identically.
func (voxelMUS) Marshal(v Voxel, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += varint.Int.Marshal(len(v.Attributes), bs[n:])
	for _, k := range slices.Sorted(maps.Keys(v.Attributes)) {
		n += ord.String.Marshal(k, bs[n:])
		n += ValueMUS.Marshal(v.Attributes[k], bs[n:])
	}
	return n
}

func (voxelMUS) Unmarshal(bs []byte) (v Voxel, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	count, n1, err := varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if count < 0 || count > len(bs)-n {
		err = errInvalidLength
		return
	}
	v.Attributes = make(map[string]Value, count)
	for range count {
		var key string
		var val Value
		key, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		val, n1, err = ValueMUS.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
		v.Attributes[key] = val
	}
	return
}

func (voxelMUS) Size(v Voxel) (size int) {
	size = ord.String.Size(v.ID)
	size += varint.Int.Size(len(v.Attributes))
	for k, val := range v.Attributes {
		size += ord.String.Size(k)
		size += ValueMUS.Size(val)
	}
	return
}

type vectorMUS struct{}

func (vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 || length > len(bs)-n {
		err = errInvalidLength
		return
	}
	v = make([]float32, length)
	var n1 int
	for i := range length {
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func (vectorMUS) Size(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return
}

type embeddingMUS struct{}

func (embeddingMUS) Marshal(e Embedding, bs []byte) (n int) {
	n = ord.String.Marshal(e.VoxelID, bs)
	n += VectorMUS.Marshal(e.Vector, bs[n:])
	n += IDMUS.Marshal(e.ContentHash, bs[n:])
	n += varint.Int64.Marshal(e.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (embeddingMUS) Unmarshal(bs []byte) (e Embedding, n int, err error) {
	e.VoxelID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	e.Vector, n1, err = VectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.ContentHash, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (embeddingMUS) Size(e Embedding) (size int) {
	size = ord.String.Size(e.VoxelID)
	size += VectorMUS.Size(e.Vector)
	size += IDMUS.Size(e.ContentHash)
	size += varint.Int64.Size(e.UpdatedAt.UnixMicro())
	return
}

type neighborMUS struct{}

func (neighborMUS) Marshal(e Neighbor, bs []byte) (n int) {
	n = ord.String.Marshal(e.From, bs)
	n += ord.String.Marshal(e.To, bs[n:])
	n += ord.String.Marshal(string(e.Direction), bs[n:])
	n += raw.Float64.Marshal(e.Distance, bs[n:])
	return n
}

func (neighborMUS) Unmarshal(bs []byte) (e Neighbor, n int, err error) {
	e.From, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	e.To, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var dir string
	dir, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	e.Direction = Direction(dir)
	e.Distance, n1, err = raw.Float64.Unmarshal(bs[n:])
	n += n1
	return
}

func (neighborMUS) Size(e Neighbor) (size int) {
	size = ord.String.Size(e.From)
	size += ord.String.Size(e.To)
	size += ord.String.Size(string(e.Direction))
	size += raw.Float64.Size(e.Distance)
	return
}

type checkpointMUS struct{}

func (checkpointMUS) Marshal(c Checkpoint, bs []byte) (n int) {
	n = ord.String.Marshal(c.ProcessorType, bs)
	n += ord.String.Marshal(c.LastVoxelID, bs[n:])
	n += varint.Int64.Marshal(c.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (checkpointMUS) Unmarshal(bs []byte) (c Checkpoint, n int, err error) {
	c.ProcessorType, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	c.LastVoxelID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	micros, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (checkpointMUS) Size(c Checkpoint) (size int) {
	size = ord.String.Size(c.ProcessorType)
	size += ord.String.Size(c.LastVoxelID)
	size += varint.Int64.Size(c.UpdatedAt.UnixMicro())
	return
}
