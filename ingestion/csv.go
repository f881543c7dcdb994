package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/stratum/core"
)

// Neighbour file columns.
const (
	ColumnFrom      = "from_voxel"
	ColumnTo        = "to_voxel"
	ColumnDirection = "direction"
	ColumnDistance  = "distance"
)

var directions = map[core.Direction]bool{
	core.DirectionAbove: true,
	core.DirectionBelow: true,
	core.DirectionNorth: true,
	core.DirectionSouth: true,
	core.DirectionEast:  true,
	core.DirectionWest:  true,
	core.DirectionSame:  true,
}

// ReadVoxels parses a voxel CSV. The header row names schema fields and
// must include voxel_id. Empty cells leave the attribute unset and columns
// outside the schema are ignored.
func ReadVoxels(r io.Reader) ([]*core.Voxel, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrInvalidCSV, err)
	}

	idCol := -1
	fields := make([]*core.Field, len(header))
	var ignored []string
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == core.FieldVoxelID {
			idCol = i
			continue
		}
		field, ok := core.LookupField(name)
		if !ok {
			ignored = append(ignored, name)
			continue
		}
		fields[i] = &field
	}
	if idCol < 0 {
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidCSV, ErrMissingColumn, core.FieldVoxelID)
	}
	if len(ignored) > 0 {
		slog.Default().With("component", "ingestion").Warn("ignoring unknown voxel columns", "columns", ignored)
	}

	var voxels []*core.Voxel
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
		}
		line, _ := cr.FieldPos(0)

		v := &core.Voxel{
			ID:         strings.TrimSpace(record[idCol]),
			Attributes: make(map[string]core.Value, len(record)),
		}
		for i, raw := range record {
			if fields[i] == nil || strings.TrimSpace(raw) == "" {
				continue
			}
			val, err := core.ParseValue(fields[i].Kind, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d, %s: %w", ErrInvalidCSV, line, fields[i].Name, err)
			}
			v.Attributes[fields[i].Name] = val
		}
		if err := core.ValidateVoxel(v); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidCSV, line, err)
		}
		voxels = append(voxels, v)
	}
	return voxels, nil
}

// ReadNeighbors parses a neighbour CSV with from_voxel, to_voxel,
// direction and distance columns. A missing distance is read as 0.
func ReadNeighbors(r io.Reader) ([]core.Neighbor, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrInvalidCSV, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{ColumnFrom, ColumnTo, ColumnDirection} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %w: %s", ErrInvalidCSV, ErrMissingColumn, required)
		}
	}
	distCol, hasDist := cols[ColumnDistance]

	var edges []core.Neighbor
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
		}
		line, _ := cr.FieldPos(0)

		edge := core.Neighbor{
			From:      strings.TrimSpace(record[cols[ColumnFrom]]),
			To:        strings.TrimSpace(record[cols[ColumnTo]]),
			Direction: core.Direction(strings.ToLower(strings.TrimSpace(record[cols[ColumnDirection]]))),
		}
		if edge.From == "" || edge.To == "" {
			return nil, fmt.Errorf("%w: line %d: empty voxel id", ErrInvalidCSV, line)
		}
		if !directions[edge.Direction] {
			return nil, fmt.Errorf("%w: line %d: unknown direction %q", ErrInvalidCSV, line, edge.Direction)
		}
		if hasDist {
			if raw := strings.TrimSpace(record[distCol]); raw != "" {
				edge.Distance, err = strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d, distance: %w", ErrInvalidCSV, line, err)
				}
			}
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// WriteVoxels writes voxels as CSV. Columns are voxel_id followed by every
// schema field set on at least one voxel, in schema order.
func WriteVoxels(w io.Writer, voxels []*core.Voxel) error {
	used := make(map[string]bool)
	for _, v := range voxels {
		for name := range v.Attributes {
			used[name] = true
		}
	}
	header := []string{core.FieldVoxelID}
	for _, f := range core.Schema {
		if f.Name != core.FieldVoxelID && used[f.Name] {
			header = append(header, f.Name)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, v := range voxels {
		record[0] = v.ID
		for i, name := range header[1:] {
			record[i+1] = v.Attributes[name].String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteNeighbors writes edges as CSV in the format ReadNeighbors accepts.
func WriteNeighbors(w io.Writer, edges []core.Neighbor) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnFrom, ColumnTo, ColumnDirection, ColumnDistance}); err != nil {
		return err
	}
	for _, e := range edges {
		err := cw.Write([]string{e.From, e.To, string(e.Direction), strconv.FormatFloat(e.Distance, 'f', 3, 64)})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadFiles reads a voxel file and, when neighborsPath is not empty, a
// neighbour file. Voxels are returned sorted by ID.
func LoadFiles(voxelsPath, neighborsPath string) ([]*core.Voxel, []core.Neighbor, error) {
	voxels, err := readFile(voxelsPath, ReadVoxels)
	if err != nil {
		return nil, nil, err
	}
	slices.SortFunc(voxels, func(a, b *core.Voxel) int { return strings.Compare(a.ID, b.ID) })

	if neighborsPath == "" {
		return voxels, nil, nil
	}
	edges, err := readFile(neighborsPath, ReadNeighbors)
	if err != nil {
		return nil, nil, err
	}
	return voxels, edges, nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()

	out, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
