package retrieval

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/storage"
)

// DefaultOrderBand is the width of the score band that ordered full
// matches are spread across, [1-band, 1].
const DefaultOrderBand = 0.01

// GraphRetriever answers constraint specs from the structured store.
type GraphRetriever struct {
	store  storage.VoxelStore
	band   float64
	logger *slog.Logger
}

// GraphOption configures a GraphRetriever.
type GraphOption func(*GraphRetriever) error

// WithOrderBand sets the band used to rank ordered full matches.
func WithOrderBand(band float64) GraphOption {
	return func(g *GraphRetriever) error {
		if band <= 0 || band >= 1 {
			return ErrInvalidBand
		}
		g.band = band
		return nil
	}
}

// WithGraphLogger sets a custom logger.
// Default is slog.Default().
func WithGraphLogger(logger *slog.Logger) GraphOption {
	return func(g *GraphRetriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// NewGraphRetriever creates a graph channel over store.
func NewGraphRetriever(store storage.VoxelStore, opts ...GraphOption) (*GraphRetriever, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	g := &GraphRetriever{
		store:  store,
		band:   DefaultOrderBand,
		logger: slog.Default().With("component", "graph-retriever"),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

type scored struct {
	voxel     *core.Voxel
	satisfied int
}

// Retrieve returns candidates for spec ordered by score then ID. An empty
// spec yields no candidates.
func (g *GraphRetriever) Retrieve(ctx context.Context, spec core.ConstraintSpec) ([]core.Candidate, error) {
	if spec.IsEmpty() {
		return []core.Candidate{}, nil
	}

	attrs := spec.AttributeConstraints()
	hops := spec.HopConstraints()
	total := len(attrs) + len(hops)

	hits := make(map[string]*scored)
	if len(attrs) > 0 || len(hops) == 0 {
		matches, err := g.store.Query(ctx, spec)
		if err != nil {
			g.logger.Error("attribute query failed", "err", err)
			return nil, err
		}
		for _, m := range matches {
			hits[m.Voxel.ID] = &scored{voxel: m.Voxel, satisfied: m.Satisfied}
		}
	}

	if len(hops) > 0 {
		reached, err := g.traverse(ctx, hops)
		if err != nil {
			return nil, err
		}
		if err := g.mergeHops(ctx, spec, attrs, hits, reached); err != nil {
			return nil, err
		}
	}

	var full, partial []*scored
	for _, s := range hits {
		switch {
		case total == 0 || s.satisfied >= total:
			full = append(full, s)
		case spec.Combinator == core.MatchAny && s.satisfied > 0:
			partial = append(partial, s)
		}
	}

	candidates := make([]core.Candidate, 0, len(full)+len(partial))
	candidates = append(candidates, g.rankFull(full, spec.OrderBy)...)
	for _, s := range partial {
		candidates = append(candidates, core.Candidate{
			ID:       s.voxel.ID,
			Source:   core.SourceGraph,
			Score:    float64(s.satisfied) / float64(total),
			Snapshot: s.voxel,
		})
	}
	anchors, err := g.anchors(ctx, spec.Scope, hops)
	if err != nil {
		return nil, err
	}
	candidates = withAnchors(candidates, anchors)
	slices.SortFunc(candidates, func(a, b core.Candidate) int {
		return cmp.Or(cmp.Compare(b.Score, a.Score), cmp.Compare(a.ID, b.ID))
	})

	g.logger.Debug("graph retrieval complete",
		"constraints", total, "full", len(full), "partial", len(partial), "anchors", len(anchors))
	return candidates, nil
}

// anchors loads the reference voxels of hop constraints. Traversal never
// returns its start, but answers about proximity are phrased relative to
// it, so the reference itself is evidence. References outside scope are
// left out.
func (g *GraphRetriever) anchors(ctx context.Context, scope core.Scope, hops []core.Constraint) ([]*core.Voxel, error) {
	if len(hops) == 0 {
		return nil, nil
	}
	refs := make([]string, 0, len(hops))
	for _, h := range hops {
		if !slices.Contains(refs, h.Reference) {
			refs = append(refs, h.Reference)
		}
	}
	voxels, err := g.store.GetVoxels(ctx, refs...)
	if err != nil {
		g.logger.Error("failed to load hop references", "references", refs, "err", err)
		return nil, err
	}
	return slices.DeleteFunc(voxels, func(v *core.Voxel) bool { return !scope.Matches(v) }), nil
}

// withAnchors adds each anchor at score 1, raising it if already present.
func withAnchors(candidates []core.Candidate, anchors []*core.Voxel) []core.Candidate {
	for _, v := range anchors {
		i := slices.IndexFunc(candidates, func(c core.Candidate) bool { return c.ID == v.ID })
		if i >= 0 {
			candidates[i].Score = 1
			continue
		}
		candidates = append(candidates, core.Candidate{
			ID:       v.ID,
			Source:   core.SourceGraph,
			Score:    1,
			Snapshot: v,
		})
	}
	return candidates
}

// traverse resolves each hop constraint to the set of voxels it reaches.
// A reference that does not exist reaches nothing.
func (g *GraphRetriever) traverse(ctx context.Context, hops []core.Constraint) ([]map[string]bool, error) {
	reached := make([]map[string]bool, len(hops))
	for i, h := range hops {
		reached[i] = make(map[string]bool)
		found, err := g.store.Traverse(ctx, h.Reference, core.RelationNeighbor, h.Hops)
		if errors.Is(err, storage.ErrNotFound) {
			g.logger.Debug("hop reference not found", "reference", h.Reference)
			continue
		}
		if err != nil {
			g.logger.Error("traversal failed", "reference", h.Reference, "err", err)
			return nil, err
		}
		for _, hop := range found {
			reached[i][hop.ID] = true
		}
	}
	return reached, nil
}

// mergeHops credits hop constraints to hits. When the spec has no attribute
// constraints the hop sets themselves define the candidates. Voxels reached
// only by traversal are loaded, scoped and scored against the attribute
// constraints so partial credit is exact.
func (g *GraphRetriever) mergeHops(ctx context.Context, spec core.ConstraintSpec, attrs []core.Constraint, hits map[string]*scored, reached []map[string]bool) error {
	var missing []string
	seen := make(map[string]bool)
	for _, set := range reached {
		for id := range set {
			if _, ok := hits[id]; !ok && !seen[id] {
				seen[id] = true
				missing = append(missing, id)
			}
		}
	}
	slices.Sort(missing)

	if len(missing) > 0 {
		voxels, err := g.store.GetVoxels(ctx, missing...)
		if err != nil {
			g.logger.Error("failed to load traversed voxels", "count", len(missing), "err", err)
			return err
		}
		for _, v := range voxels {
			if !spec.Scope.Matches(v) {
				continue
			}
			satisfied := 0
			for _, c := range attrs {
				if c.Matches(v) {
					satisfied++
				}
			}
			hits[v.ID] = &scored{voxel: v, satisfied: satisfied}
		}
	}

	for id, s := range hits {
		for _, set := range reached {
			if set[id] {
				s.satisfied++
			}
		}
	}
	return nil
}

// rankFull scores full matches. Without an ordering they all score 1.
// With one they are spread evenly over [1-band, 1] by the ordered field,
// voxels lacking the field last, ties broken by ID.
func (g *GraphRetriever) rankFull(full []*scored, order *core.Ordering) []core.Candidate {
	if order != nil {
		slices.SortFunc(full, func(a, b *scored) int {
			av, aok := a.voxel.Number(order.Field)
			bv, bok := b.voxel.Number(order.Field)
			switch {
			case aok && !bok:
				return -1
			case !aok && bok:
				return 1
			}
			c := cmp.Compare(av, bv)
			if order.Descending {
				c = -c
			}
			return cmp.Or(c, cmp.Compare(a.voxel.ID, b.voxel.ID))
		})
	}

	out := make([]core.Candidate, len(full))
	for i, s := range full {
		score := 1.0
		if order != nil && len(full) > 1 {
			score = 1 - g.band*float64(i)/float64(len(full)-1)
		}
		out[i] = core.Candidate{
			ID:       s.voxel.ID,
			Source:   core.SourceGraph,
			Score:    score,
			Snapshot: s.voxel,
		}
	}
	return out
}
