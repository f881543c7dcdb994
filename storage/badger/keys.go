package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	voxelPrefix      = "voxrec:"
	voxelLayerPrefix = "voxlyr:"
	neighborPrefix   = "voxnbr:"
	embeddingPrefix  = "voxemb:"
)

// makeVoxelKey generates a key for a voxel by ID.
// Voxel keys sort by ID, which gives ForEach and Query their order.
func makeVoxelKey(id string) []byte {
	return []byte(voxelPrefix + id)
}

// voxelIDFromKey strips the voxel prefix.
func voxelIDFromKey(key []byte) string {
	return string(key[len(voxelPrefix):])
}

// makeLayerKey generates a composite key for the layer index.
// Format: prefix:layer\x00id
func makeLayerKey(layer, id string) []byte {
	return []byte(voxelLayerPrefix + layer + "\x00" + id)
}

// makePartialLayerKey generates a partial key for layer scans.
// Format: prefix:layer\x00
func makePartialLayerKey(layer string) []byte {
	return []byte(voxelLayerPrefix + layer + "\x00")
}

// makeNeighborKey generates a composite key for an adjacency edge.
// Format: prefix:len(from):from:to
func makeNeighborKey(from, to string) []byte {
	partial := makePartialNeighborKey(from)
	buf := make([]byte, len(partial)+len(to))
	offset := copy(buf, partial)
	copy(buf[offset:], to)
	return buf
}

// makePartialNeighborKey generates a partial key for outgoing edge scans.
// Format: prefix:len(from):from
// The length is written in BigEndian so one ID can never prefix-match another.
func makePartialNeighborKey(from string) []byte {
	prefixBytes := []byte(neighborPrefix)
	buf := make([]byte, len(prefixBytes)+2+len(from))
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint16(buf[offset:], uint16(len(from)))
	offset += 2
	copy(buf[offset:], from)
	return buf
}

// makeEmbeddingKey generates a key for a voxel embedding.
func makeEmbeddingKey(voxelID string) []byte {
	return []byte(embeddingPrefix + voxelID)
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", processorType))
}
