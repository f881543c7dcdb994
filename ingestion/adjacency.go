package ingestion

import (
	"cmp"
	"math"
	"slices"

	"github.com/poiesic/stratum/core"
)

const (
	// DefaultAdjacencyThreshold is the maximum centre distance, in metres,
	// between two voxels considered neighbours.
	DefaultAdjacencyThreshold = 1.5

	// verticalRatio is the |dz|/d above which an edge is above or below.
	verticalRatio = 0.7
)

type cell [3]int64

// BuildAdjacency derives directed NEIGHBOR edges between every pair of
// voxels whose centres lie within threshold of each other. Each pair yields
// an edge in both directions. Voxels without a position are skipped.
// Edges are ordered by From then To.
func BuildAdjacency(voxels []*core.Voxel, threshold float64) []core.Neighbor {
	if threshold <= 0 {
		threshold = DefaultAdjacencyThreshold
	}

	type point struct {
		id      string
		x, y, z float64
	}
	points := make([]point, 0, len(voxels))
	grid := make(map[cell][]int)
	for _, v := range voxels {
		x, y, z, ok := v.Position()
		if !ok {
			continue
		}
		grid[cellOf(x, y, z, threshold)] = append(grid[cellOf(x, y, z, threshold)], len(points))
		points = append(points, point{id: v.ID, x: x, y: y, z: z})
	}

	var edges []core.Neighbor
	for _, p := range points {
		c := cellOf(p.x, p.y, p.z, threshold)
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range grid[cell{c[0] + dx, c[1] + dy, c[2] + dz}] {
						q := points[j]
						if q.id == p.id {
							continue
						}
						ex, ey, ez := q.x-p.x, q.y-p.y, q.z-p.z
						d := math.Sqrt(ex*ex + ey*ey + ez*ez)
						if d > threshold {
							continue
						}
						edges = append(edges, core.Neighbor{
							From:      p.id,
							To:        q.id,
							Direction: direction(ex, ey, ez, d),
							Distance:  d,
						})
					}
				}
			}
		}
	}

	slices.SortFunc(edges, func(a, b core.Neighbor) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return edges
}

func cellOf(x, y, z, size float64) cell {
	return cell{int64(math.Floor(x / size)), int64(math.Floor(y / size)), int64(math.Floor(z / size))}
}

// direction classifies the offset (dx, dy, dz) of length d from one centre
// to another. x grows east, y grows north and z grows up.
func direction(dx, dy, dz, d float64) core.Direction {
	switch {
	case d == 0:
		return core.DirectionSame
	case dz/d > verticalRatio:
		return core.DirectionAbove
	case dz/d < -verticalRatio:
		return core.DirectionBelow
	case math.Abs(dx) >= math.Abs(dy):
		if dx > 0 {
			return core.DirectionEast
		}
		return core.DirectionWest
	case dy > 0:
		return core.DirectionNorth
	default:
		return core.DirectionSouth
	}
}
