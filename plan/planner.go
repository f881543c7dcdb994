// Package plan extracts structured constraints from free-text questions.
//
// Extraction is lexicon driven: numeric comparisons over attribute aliases,
// categorical vocabularies, boolean risk flags, layer and surface scope,
// voxel ids and hop bounds. Each task type states what it needs to be
// answerable from the graph channel; when that is missing the planner
// returns an empty, underspecified spec and retrieval falls back to
// vector search alone.
package plan

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/stratum/core"
)

// Default hop bounds for relative proximity words.
const (
	AdjacentHops = 1
	NearHops     = 2
	MaxHops      = 10
)

// Planner is stateless and safe for concurrent use.
type Planner struct {
	logger *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// New creates a planner.
func New(opts ...Option) (*Planner, error) {
	p := &Planner{logger: slog.Default().With("component", "planner")}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// span is a half-open byte range of the query consumed by a comparison.
type span struct{ start, end int }

func (s span) overlaps(start, end int) bool {
	return start < s.end && s.start < end
}

// Plan extracts the constraint spec for text under the given task type.
func (p *Planner) Plan(text string, task core.TaskType) core.ConstraintSpec {
	var (
		spec     core.ConstraintSpec
		consumed []span
		// equalities counts OpEq constraints per field. Two equalities on
		// one field can only both hold as alternatives.
		equalities = map[string]int{}
	)
	add := func(c core.Constraint) {
		spec.Constraints = append(spec.Constraints, c)
		if !c.IsHop() && c.Op == core.OpEq {
			equalities[c.Field]++
		}
	}

	for _, m := range betweenExpr.FindAllStringSubmatchIndex(text, -1) {
		field := resolveAlias(text[m[2]:m[3]])
		lo, errLo := parseNumber(text[m[4]:m[5]])
		hi, errHi := parseNumber(text[m[6]:m[7]])
		if errLo != nil || errHi != nil {
			continue
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		add(core.Constraint{Field: field, Op: core.OpGe, Value: core.Number(lo)})
		add(core.Constraint{Field: field, Op: core.OpLe, Value: core.Number(hi)})
		consumed = append(consumed, span{m[0], m[1]})
	}

	for _, m := range comparisonExpr.FindAllStringSubmatchIndex(text, -1) {
		if slices.ContainsFunc(consumed, func(s span) bool { return s.overlaps(m[0], m[1]) }) {
			continue
		}
		field := resolveAlias(text[m[2]:m[3]])
		op := comparators[strings.ToLower(text[m[4]:m[5]])]
		v, err := parseNumber(text[m[6]:m[7]])
		if err != nil {
			continue
		}
		add(core.Constraint{Field: field, Op: op, Value: core.Number(v)})
		consumed = append(consumed, span{m[0], m[1]})
	}

	for _, f := range flags {
		m := f.expr.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		add(core.Constraint{Field: f.field, Op: core.OpEq, Value: core.Flag(m[1] == "")})
	}

	seen := map[string]bool{}
	for _, c := range categories {
		for _, m := range c.expr.FindAllStringSubmatch(text, -1) {
			value := canonical(m[1])
			key := c.field + "\x00" + value
			if seen[key] {
				continue
			}
			seen[key] = true
			add(core.Constraint{Field: c.field, Op: c.op, Value: core.Text(value)})
		}
	}

	spec.Scope.Layers = collect(text, "M", layerExpr, layerTokenExpr)
	spec.Scope.Surfaces = collect(text, "S", surfaceExpr, surfaceToken)

	ids := voxelIDs(text)
	hops := hopBound(text)
	if hops > 0 && len(ids) > 0 {
		add(core.Constraint{Op: core.OpWithinHops, Reference: ids[0], Hops: hops})
		ids = ids[1:]
	}
	for _, id := range ids {
		add(core.Constraint{Field: core.FieldVoxelID, Op: core.OpEq, Value: core.Text(id)})
	}

	// Targets are fields mentioned without a comparator.
	for _, m := range aliasExpr.FindAllStringSubmatchIndex(text, -1) {
		if slices.ContainsFunc(consumed, func(s span) bool { return s.overlaps(m[0], m[1]) }) {
			continue
		}
		field := resolveAlias(text[m[2]:m[3]])
		if !slices.Contains(spec.Targets, field) {
			spec.Targets = append(spec.Targets, field)
		}
	}

	for _, c := range spec.Constraints {
		if c.Value.Kind == core.KindNumeric && c.Op != core.OpEq && c.Op != core.OpNe {
			spec.OrderBy = &core.Ordering{
				Field:      c.Field,
				Descending: c.Op == core.OpGt || c.Op == core.OpGe,
			}
			break
		}
	}

	spec.Combinator = core.MatchAll
	if disjunction.MatchString(text) {
		spec.Combinator = core.MatchAny
	}
	for _, n := range equalities {
		if n > 1 {
			spec.Combinator = core.MatchAny
		}
	}

	if missing := requirement(task, spec, hops); missing != "" {
		p.logger.Debug("plan underspecified", "task", task, "missing", missing)
		return core.ConstraintSpec{Underspecified: true}
	}

	p.logger.Debug("planned query", "task", task,
		"constraints", len(spec.Constraints),
		"layers", spec.Scope.Layers,
		"surfaces", spec.Scope.Surfaces)
	return spec
}

// requirement returns what task still needs, or "" when spec satisfies it.
func requirement(task core.TaskType, spec core.ConstraintSpec, hops int) string {
	attrs := spec.AttributeConstraints()
	switch task {
	case core.TaskAttributeRetrieval:
		if !slices.ContainsFunc(attrs, func(c core.Constraint) bool { return c.Field == core.FieldVoxelID }) {
			return "voxel id"
		}
	case core.TaskFiltering:
		if len(attrs) == 0 && spec.Scope.IsEmpty() {
			return "attribute constraint"
		}
	case core.TaskComputation:
		numeric := slices.ContainsFunc(attrs, func(c core.Constraint) bool {
			return c.Value.Kind == core.KindNumeric
		})
		if !numeric && len(spec.Targets) == 0 {
			return "numeric constraint or target field"
		}
	case core.TaskProximity:
		if len(spec.HopConstraints()) == 0 {
			if hops == 0 {
				return "hop bound"
			}
			return "reference voxel"
		}
	case core.TaskVisualization:
		if len(spec.Constraints) == 0 && spec.Scope.IsEmpty() {
			return "voxel id or constraint"
		}
	}
	return ""
}

// voxelIDs returns the distinct voxel ids in order of appearance, in
// canonical v_M<layer>_<seq> form.
func voxelIDs(text string) []string {
	var ids []string
	for _, m := range voxelIDExpr.FindAllStringSubmatch(text, -1) {
		id := fmt.Sprintf("v_M%s_%s", m[1], m[2])
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// hopBound returns the explicit or implied hop bound, or 0 when none.
func hopBound(text string) int {
	if m := hopsExpr.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return min(n, MaxHops)
		}
	}
	if adjacentExpr.MatchString(text) {
		return AdjacentHops
	}
	if nearExpr.MatchString(text) {
		return NearHops
	}
	return 0
}

// collect gathers scope references such as "layer 03" or "M3" as
// prefix+number, deduplicated in order of appearance.
func collect(text, prefix string, exprs ...*regexp.Regexp) []string {
	var out []string
	for _, expr := range exprs {
		for _, m := range expr.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			ref := prefix + strconv.Itoa(n)
			if !slices.Contains(out, ref) {
				out = append(out, ref)
			}
		}
	}
	return out
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
