// Package budget bounds the evidence handed to the generator.
//
// Fused candidates are projected to the fields their task needs and added
// in rank order until the next entry would break the entity, character or
// token limit. Computation and Comparison tasks also receive per-layer
// aggregates over every fused candidate, so statistics stay exact even
// when individual entries are truncated away.
package budget

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/stratum/core"
)

// ErrInvalidBudget is returned for negative limits.
var ErrInvalidBudget = errors.New("budget limits must be non-negative")

// AllGroup labels aggregates computed over every candidate.
const AllGroup = "all"

// DefaultBudget returns the default context limits.
func DefaultBudget() core.Budget {
	return core.Budget{MaxEntities: 20, MaxChars: 12000}
}

// Budgeter builds bounded contexts. It is safe for concurrent use.
type Budgeter struct {
	budget      core.Budget
	counter     TokenCounter
	projections map[core.TaskType]Projection
	logger      *slog.Logger
}

// Option configures a Budgeter.
type Option func(*Budgeter) error

// WithBudget sets the context limits. A zero limit is disabled. MaxChars
// bounds the whole serialized context; the one-line voxel summary is
// always kept, so a limit below its length cannot be met.
func WithBudget(b core.Budget) Option {
	return func(bu *Budgeter) error {
		if b.MaxEntities < 0 || b.MaxChars < 0 || b.MaxTokens < 0 {
			return ErrInvalidBudget
		}
		bu.budget = b
		return nil
	}
}

// WithTokenCounter sets the counter used for MaxTokens.
func WithTokenCounter(counter TokenCounter) Option {
	return func(bu *Budgeter) error {
		bu.counter = counter
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(bu *Budgeter) error {
		if logger == nil {
			logger = slog.Default()
		}
		bu.logger = logger
		return nil
	}
}

// New creates a budgeter with the default projection table.
func New(opts ...Option) (*Budgeter, error) {
	b := &Budgeter{
		budget:      DefaultBudget(),
		projections: DefaultProjections(),
		logger:      slog.Default().With("component", "budgeter"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.budget.MaxTokens > 0 && b.counter == nil {
		b.counter = NewTiktokenCounter(DefaultEncoding)
	}
	return b, nil
}

// Budget returns the configured limits.
func (b *Budgeter) Budget() core.Budget {
	return b.budget
}

// Build projects and bounds fused for task.
func (b *Budgeter) Build(fused core.FusedResult, task core.TaskType) core.Context {
	projection := b.projections[task]
	fields := projection.Fields()

	ctx := core.Context{
		Task:      task,
		Budget:    b.budget,
		Total:     len(fused.Candidates),
		Truncated: fused.Truncated,
	}

	if task == core.TaskComputation || task == core.TaskComparison {
		ctx.Aggregates = aggregate(fused.Candidates, fields)
	}
	if b.budget.MaxChars > 0 {
		// The summary line and the empty marker always fit before aggregates.
		room := b.budget.MaxChars - summaryLen(ctx.Total) - len(noneLine)
		if kept := fitAggregates(ctx.Aggregates, room); len(kept) < len(ctx.Aggregates) {
			ctx.Aggregates = kept
			ctx.Truncated = true
		}
	}
	header := renderAggregates(ctx.Aggregates)

	var (
		lines  []string
		chars  = summaryLen(ctx.Total)
		tokens int
	)
	if header != "" {
		chars += len(header) + 1
	}
	if b.counter != nil {
		tokens = b.counter.CountTokens(header)
	}
	for _, c := range fused.Candidates {
		if b.budget.MaxEntities > 0 && len(ctx.Entries) >= b.budget.MaxEntities {
			ctx.Truncated = true
			break
		}
		entry := projectEntry(c, fields)
		line := renderEntry(entry)
		if b.budget.MaxChars > 0 && chars+len(line)+1 > b.budget.MaxChars {
			ctx.Truncated = true
			break
		}
		n := 0
		if b.counter != nil && b.budget.MaxTokens > 0 {
			n = b.counter.CountTokens(line)
			if tokens+n > b.budget.MaxTokens {
				ctx.Truncated = true
				break
			}
		}
		ctx.Entries = append(ctx.Entries, entry)
		lines = append(lines, line)
		chars += len(line) + 1
		tokens += n
	}

	ctx.Text = render(ctx, header, lines)

	if ctx.Truncated {
		b.logger.Debug("context truncated", "task", task,
			"kept", len(ctx.Entries), "total", ctx.Total, "chars", chars)
	}
	return ctx
}

func projectEntry(c core.FusedCandidate, fields []string) core.ContextEntry {
	entry := core.ContextEntry{ID: c.ID}
	if c.Snapshot == nil {
		return entry
	}
	for _, name := range fields {
		if name == core.FieldVoxelID {
			continue
		}
		if v, ok := c.Snapshot.Get(name); ok {
			entry.Fields = append(entry.Fields, core.FieldValue{Name: name, Value: v})
		}
	}
	return entry
}

func renderEntry(e core.ContextEntry) string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(e.ID)
	for i, f := range e.Fields {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value.String())
		if field, ok := core.LookupField(f.Name); ok && field.Unit != "" {
			if field.Unit != "%" {
				b.WriteByte(' ')
			}
			b.WriteString(field.Unit)
		}
	}
	return b.String()
}

func render(ctx core.Context, header string, lines []string) string {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Voxels (%d of %d retrieved", len(ctx.Entries), ctx.Total)
	if ctx.Truncated {
		b.WriteString(", truncated")
	}
	b.WriteString("):\n")
	if len(lines) == 0 {
		b.WriteString(noneLine)
	}
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// aggregate computes count/mean/min/max for every numeric field over all
// candidates and per layer.
func aggregate(candidates []core.FusedCandidate, fields []string) []core.Aggregate {
	type key struct{ group, field string }
	acc := make(map[key]*core.Aggregate)
	var groups []string

	add := func(group, field string, v float64) {
		k := key{group, field}
		a, ok := acc[k]
		if !ok {
			a = &core.Aggregate{Group: group, Field: field, Min: math.Inf(1), Max: math.Inf(-1)}
			acc[k] = a
		}
		a.Count++
		a.Mean += v // running sum until the end
		a.Min = min(a.Min, v)
		a.Max = max(a.Max, v)
	}

	for _, c := range candidates {
		if c.Snapshot == nil {
			continue
		}
		layer := c.Snapshot.Layer()
		if layer == "" {
			layer = "unknown"
		}
		if !slices.Contains(groups, layer) {
			groups = append(groups, layer)
		}
		for _, name := range fields {
			if v, ok := c.Snapshot.Number(name); ok {
				add(AllGroup, name, v)
				add(layer, name, v)
			}
		}
	}
	slices.Sort(groups)
	groups = append([]string{AllGroup}, groups...)

	var out []core.Aggregate
	for _, g := range groups {
		for _, name := range fields {
			if a, ok := acc[key{g, name}]; ok {
				a.Mean /= float64(a.Count)
				out = append(out, *a)
			}
		}
	}
	return out
}

const (
	aggregatesTitle = "Aggregates over all retrieved voxels:\n"
	noneLine        = "(none)\n"
)

// summaryLen is the longest the "Voxels (n of total ...)" line can be.
func summaryLen(total int) int {
	return len(fmt.Sprintf("Voxels (%d of %d retrieved, truncated):\n", total, total))
}

func renderAggregates(aggs []core.Aggregate) string {
	if len(aggs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(aggregatesTitle)
	for _, a := range aggs {
		b.WriteString(aggregateLine(a))
	}
	return b.String()
}

func aggregateLine(a core.Aggregate) string {
	return fmt.Sprintf("- %s %s: count=%d mean=%s min=%s max=%s\n",
		a.Group, a.Field, a.Count, formatFloat(a.Mean), formatFloat(a.Min), formatFloat(a.Max))
}

// fitAggregates returns the longest prefix of aggs whose rendered header,
// with its trailing separator, is at most limit bytes.
func fitAggregates(aggs []core.Aggregate, limit int) []core.Aggregate {
	size := len(aggregatesTitle) + 1
	for i, a := range aggs {
		size += len(aggregateLine(a))
		if size > limit {
			if i == 0 {
				return nil
			}
			return aggs[:i]
		}
	}
	return aggs
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}
