package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/ingestion"
)

// material describes one geological mass of the synthetic site.
type material struct {
	mass      string
	name      string
	kind      string
	subtype   string
	soilGroup string
	thickness float64
	moisture  [2]float64
	bearing   [2]float64
	spt       [2]float64
	density   float64
	friction  float64
	cohesion  float64
	perm      float64
	liquid    float64
	plastic   float64
}

var site = []material{
	{"M1", "Made Ground", "Fill", "Gravelly sand fill", "SM", 2, [2]float64{12, 25}, [2]float64{80, 160}, [2]float64{4, 12}, 1750, 28, 2, 1e-5, 0, 0},
	{"M2", "Alluvial Clay", "Clay", "Soft silty clay", "CH", 4, [2]float64{30, 55}, [2]float64{40, 110}, [2]float64{2, 8}, 1650, 18, 20, 1e-9, 62, 28},
	{"M3", "Glacial Till", "Sand", "Dense clayey sand", "SC", 5, [2]float64{15, 45}, [2]float64{180, 320}, [2]float64{15, 35}, 1950, 32, 10, 1e-7, 34, 18},
	{"M4", "Weathered Mudstone", "Rock", "Weathered mudstone", "GW", 6, [2]float64{5, 15}, [2]float64{400, 900}, [2]float64{50, 100}, 2300, 38, 60, 1e-8, 0, 0},
}

var (
	outDir  = flag.String("out", ".", "directory for voxels.csv and neighbors.csv")
	sizeX   = flag.Int("x", 12, "voxels along x")
	sizeY   = flag.Int("y", 12, "voxels along y")
	spacing = flag.Float64("spacing", 1, "voxel edge length in metres")
	seed    = flag.Uint64("seed", 42, "random seed")
)

func init() {
	flag.Parse()
}

func between(r *rand.Rand, bounds [2]float64) float64 {
	return bounds[0] + r.Float64()*(bounds[1]-bounds[0])
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

func risk(moisture, bearing float64) (string, float64) {
	score := math.Min(1, math.Max(0, moisture/60*0.5+(1-bearing/400)*0.5))
	switch {
	case score >= 0.6:
		return "High", score
	case score >= 0.35:
		return "Medium", score
	default:
		return "Low", score
	}
}

func suitability(bearing float64) (string, string) {
	switch {
	case bearing >= 300:
		return "Good", "Shallow pad footing"
	case bearing >= 150:
		return "Moderate", "Raft foundation"
	default:
		return "Poor", "Piled foundation"
	}
}

func generate(r *rand.Rand) []*core.Voxel {
	var voxels []*core.Voxel
	top := 0.0
	for layer, m := range site {
		count := 0
		layers := int(math.Max(1, math.Round(m.thickness / *spacing)))
		for k := 0; k < layers; k++ {
			depth := top + (float64(k)+0.5)**spacing
			for i := 0; i < *sizeX; i++ {
				for j := 0; j < *sizeY; j++ {
					count++
					moisture := round(between(r, m.moisture), 1)
					bearing := round(between(r, m.bearing), 0)
					level, score := risk(moisture, bearing)
					suit, foundation := suitability(bearing)
					settlement := round(math.Max(0, (60-bearing/10)*moisture/40), 1)

					attrs := map[string]core.Value{
						"project_id":                 core.Text("SYN-001"),
						core.FieldMaterialType:       core.Text(m.kind),
						core.FieldMaterialSubtype:    core.Text(m.subtype),
						core.FieldSoilGroup:          core.Text(m.soilGroup),
						core.FieldPositionX:          core.Number(round(float64(i)**spacing, 3)),
						core.FieldPositionY:          core.Number(round(float64(j)**spacing, 3)),
						core.FieldPositionZ:          core.Number(round(-depth, 3)),
						"elevation":                  core.Number(round(100-depth, 2)),
						"depth_below_surface":        core.Number(round(depth, 2)),
						"voxel_volume":               core.Number(round(math.Pow(*spacing, 3), 3)),
						core.FieldMassID:             core.Text(m.mass),
						core.FieldMassName:           core.Text(m.name),
						core.FieldTopSurface:         core.Text(fmt.Sprintf("S%d", layer+1)),
						core.FieldBottomSurface:      core.Text(fmt.Sprintf("S%d", layer+2)),
						core.FieldMoisture:           core.Number(moisture),
						"density":                    core.Number(round(m.density*(1+r.NormFloat64()*0.02), 0)),
						"saturation":                 core.Number(round(math.Min(100, moisture*2), 1)),
						"permeability":               core.Number(m.perm),
						core.FieldBearingCapacity:    core.Number(bearing),
						"allowable_bearing_pressure": core.Number(round(bearing/3, 0)),
						core.FieldSPT:                core.Number(math.Round(between(r, m.spt))),
						"friction_angle":             core.Number(m.friction),
						"cohesion":                   core.Number(m.cohesion),
						core.FieldSettlementMM:       core.Number(settlement),
						core.FieldRiskLevel:          core.Text(level),
						core.FieldRiskScore:          core.Number(round(score, 2)),
						core.FieldIsProblematic:      core.Flag(level == "High"),
						core.FieldIsHighMoisture:     core.Flag(moisture > 40),
						core.FieldIsLowBearing:       core.Flag(bearing < 100),
						core.FieldRequiresAttention:  core.Flag(level != "Low"),
						core.FieldFoundationSuit:     core.Text(suit),
						core.FieldFoundationType:     core.Text(foundation),
						core.FieldGroundImprovement:  core.Flag(bearing < 100),
						core.FieldDewatering:         core.Flag(moisture > 45),
						"data_source":                core.Text("synthetic"),
						"data_quality":               core.Text("Medium"),
					}
					if m.liquid > 0 {
						attrs["liquid_limit"] = core.Number(m.liquid)
						attrs["plastic_limit"] = core.Number(m.plastic)
						attrs["plasticity_index"] = core.Number(m.liquid - m.plastic)
					}
					voxels = append(voxels, &core.Voxel{
						ID:         fmt.Sprintf("v_%s_%05d", m.mass, count),
						Attributes: attrs,
					})
				}
			}
		}
		top += float64(layers) * *spacing
	}
	return voxels
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	r := rand.New(rand.NewPCG(*seed, *seed))
	voxels := generate(r)
	edges := ingestion.BuildAdjacency(voxels, ingestion.DefaultAdjacencyThreshold**spacing)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		panic(err)
	}
	voxelPath := filepath.Join(*outDir, "voxels.csv")
	if err := writeFile(voxelPath, func(f *os.File) error { return ingestion.WriteVoxels(f, voxels) }); err != nil {
		panic(err)
	}
	edgePath := filepath.Join(*outDir, "neighbors.csv")
	if err := writeFile(edgePath, func(f *os.File) error { return ingestion.WriteNeighbors(f, edges) }); err != nil {
		panic(err)
	}

	slog.Info("seed data written", "voxels", len(voxels), "neighbors", len(edges), "dir", *outDir)
}
