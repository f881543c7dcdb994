package core

import (
	"fmt"
	"slices"
	"strings"
)

// TaskType is the closed set of question categories. The declaration order
// is the tie-break priority used by classification.
type TaskType int

const (
	TaskAttributeRetrieval TaskType = iota + 1
	TaskFiltering
	TaskReasoning
	TaskComputation
	TaskClassification
	TaskSummarization
	TaskComparison
	TaskProximity
	TaskVisualization
)

var taskNames = map[TaskType]string{
	TaskAttributeRetrieval: "AttributeRetrieval",
	TaskFiltering:          "Filtering",
	TaskReasoning:          "Reasoning",
	TaskComputation:        "Computation",
	TaskClassification:     "Classification",
	TaskSummarization:      "Summarization",
	TaskComparison:         "Comparison",
	TaskProximity:          "Proximity",
	TaskVisualization:      "Visualization",
}

// TaskTypes returns every task type in priority order.
func TaskTypes() []TaskType {
	return []TaskType{
		TaskAttributeRetrieval,
		TaskFiltering,
		TaskReasoning,
		TaskComputation,
		TaskClassification,
		TaskSummarization,
		TaskComparison,
		TaskProximity,
		TaskVisualization,
	}
}

func (t TaskType) String() string {
	if name, ok := taskNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TaskType(%d)", int(t))
}

// Valid reports whether t is one of the nine task types.
func (t TaskType) Valid() bool {
	_, ok := taskNames[t]
	return ok
}

// ParseTaskType parses a task name case-insensitively. Underscores and
// hyphens are ignored so "attribute_retrieval" is accepted.
func ParseTaskType(s string) (TaskType, error) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(s))
	for t, name := range taskNames {
		if strings.ToLower(name) == norm {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTaskType, s)
}

func (t TaskType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTaskType, int(t))
	}
	return []byte(t.String()), nil
}

func (t *TaskType) UnmarshalText(b []byte) error {
	parsed, err := ParseTaskType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Classification is the outcome of task classification.
type Classification struct {
	Task          TaskType
	Confidence    float64
	LowConfidence bool
}

// Operator is a constraint comparison operator.
type Operator string

const (
	OpEq         Operator = "="
	OpNe         Operator = "!="
	OpLt         Operator = "<"
	OpLe         Operator = "<="
	OpGt         Operator = ">"
	OpGe         Operator = ">="
	OpContains   Operator = "contains"
	OpWithinHops Operator = "within-k-hops"
)

// Valid reports whether op is in the closed operator set.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpContains, OpWithinHops:
		return true
	}
	return false
}

// Constraint is one (attribute, operator, value) triple. For OpWithinHops
// the constraint instead names a Reference voxel and a Hops bound.
type Constraint struct {
	Field     string
	Op        Operator
	Value     Value
	Reference string
	Hops      int
}

func (c Constraint) String() string {
	if c.Op == OpWithinHops {
		return fmt.Sprintf("within %d hops of %s", c.Hops, c.Reference)
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, c.Value)
}

// IsHop reports whether c is a relationship constraint.
func (c Constraint) IsHop() bool {
	return c.Op == OpWithinHops
}

// Matches evaluates an attribute constraint against a voxel. Relationship
// constraints never match here; they are resolved by traversal.
func (c Constraint) Matches(v *Voxel) bool {
	if c.IsHop() {
		return false
	}
	got, ok := v.Get(c.Field)
	if !ok {
		return false
	}
	return Compare(got, c.Op, c.Value)
}

// Compare applies op to (got, want). Mismatched kinds never compare equal.
func Compare(got Value, op Operator, want Value) bool {
	if got.Kind != want.Kind {
		return false
	}
	switch got.Kind {
	case KindNumeric:
		switch op {
		case OpEq:
			return got.Num == want.Num
		case OpNe:
			return got.Num != want.Num
		case OpLt:
			return got.Num < want.Num
		case OpLe:
			return got.Num <= want.Num
		case OpGt:
			return got.Num > want.Num
		case OpGe:
			return got.Num >= want.Num
		}
	case KindCategorical:
		switch op {
		case OpEq:
			return strings.EqualFold(got.Str, want.Str)
		case OpNe:
			return !strings.EqualFold(got.Str, want.Str)
		case OpContains:
			return strings.Contains(strings.ToLower(got.Str), strings.ToLower(want.Str))
		}
	case KindBoolean:
		switch op {
		case OpEq:
			return got.Bool == want.Bool
		case OpNe:
			return got.Bool != want.Bool
		}
	}
	return false
}

// Combinator decides how multiple attribute constraints combine.
type Combinator int

const (
	// MatchAll requires every constraint; only full matches are returned.
	MatchAll Combinator = iota
	// MatchAny accepts partial matches with graded credit.
	MatchAny
)

// Scope restricts retrieval to geological layers and bounding surfaces.
type Scope struct {
	Layers   []string
	Surfaces []string
}

// IsEmpty reports whether the scope places no restriction.
func (s Scope) IsEmpty() bool {
	return len(s.Layers) == 0 && len(s.Surfaces) == 0
}

// Matches reports whether v lies within the scope.
func (s Scope) Matches(v *Voxel) bool {
	if len(s.Layers) > 0 && !containsFold(s.Layers, v.Layer()) {
		return false
	}
	if len(s.Surfaces) > 0 &&
		!containsFold(s.Surfaces, v.Text(FieldTopSurface)) &&
		!containsFold(s.Surfaces, v.Text(FieldBottomSurface)) {
		return false
	}
	return true
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(e string) bool {
		return strings.EqualFold(e, s)
	})
}

// Ordering ranks fully matching graph candidates by one numeric field.
type Ordering struct {
	Field      string
	Descending bool
}

// ConstraintSpec is the structured plan extracted from a query.
type ConstraintSpec struct {
	Constraints    []Constraint
	Combinator     Combinator
	Scope          Scope
	Targets        []string // fields referenced without a comparator
	OrderBy        *Ordering
	Underspecified bool
}

// IsEmpty reports whether the spec restricts nothing.
func (s ConstraintSpec) IsEmpty() bool {
	return len(s.Constraints) == 0 && s.Scope.IsEmpty()
}

// AttributeConstraints returns the non-relationship constraints in order.
func (s ConstraintSpec) AttributeConstraints() []Constraint {
	var out []Constraint
	for _, c := range s.Constraints {
		if !c.IsHop() {
			out = append(out, c)
		}
	}
	return out
}

// HopConstraints returns the relationship constraints in order.
func (s ConstraintSpec) HopConstraints() []Constraint {
	var out []Constraint
	for _, c := range s.Constraints {
		if c.IsHop() {
			out = append(out, c)
		}
	}
	return out
}

// Source tags which retrieval channel produced a candidate.
type Source string

const (
	SourceGraph  Source = "graph"
	SourceVector Source = "vector"
	SourceBoth   Source = "both"
)

// Candidate is one retrieval hit from a single channel.
type Candidate struct {
	ID       string
	Source   Source
	Score    float64
	Snapshot *Voxel
}

// FusedCandidate is a deduplicated candidate carrying per-channel scores.
type FusedCandidate struct {
	ID          string
	Source      Source
	GraphScore  float64
	VectorScore float64
	Score       float64
	Snapshot    *Voxel
}

// FusedResult is the ranked union of both channels.
type FusedResult struct {
	Candidates []FusedCandidate
	Truncated  bool
}

// IDs returns the candidate ids in rank order.
func (r FusedResult) IDs() []string {
	ids := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		ids[i] = c.ID
	}
	return ids
}

// FieldValue is one projected attribute.
type FieldValue struct {
	Name  string
	Value Value
}

// ContextEntry is a field-projected voxel summary.
type ContextEntry struct {
	ID     string
	Fields []FieldValue
}

// Aggregate summarizes one numeric field over a group of candidates.
type Aggregate struct {
	Group string // layer id, or "all"
	Field string
	Count int
	Mean  float64
	Min   float64
	Max   float64
}

// Budget bounds a generation context. Zero disables a limit.
type Budget struct {
	MaxEntities int
	MaxChars    int
	MaxTokens   int
}

// Context is the bounded evidence handed to the generator.
type Context struct {
	Task       TaskType
	Entries    []ContextEntry
	Aggregates []Aggregate
	Budget     Budget
	Truncated  bool
	Total      int    // fused candidates before budgeting
	Text       string // serialized form embedded in prompts
}

// IDs returns the set of voxel ids present in the context.
func (c *Context) IDs() map[string]bool {
	ids := make(map[string]bool, len(c.Entries))
	for _, e := range c.Entries {
		ids[e.ID] = true
	}
	return ids
}

// SortedIDs returns the context ids in ascending order.
func (c *Context) SortedIDs() []string {
	ids := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		ids = append(ids, e.ID)
	}
	slices.Sort(ids)
	return ids
}

// Prompt is a rendered generation request.
type Prompt struct {
	Task   TaskType
	System string
	User   string
}

// ValidationStatus is the grounding verdict of an answer.
type ValidationStatus string

const (
	StatusValid     ValidationStatus = "Valid"
	StatusCorrected ValidationStatus = "Corrected"
	StatusRefused   ValidationStatus = "Refused"
)

// Answer is the delivered output of a query.
type Answer struct {
	TaskType         TaskType         `json:"taskType"`
	AnswerText       string           `json:"answerText"`
	CitedEntityIDs   []string         `json:"citedEntityIds"`
	Confidence       float64          `json:"confidence"`
	Degraded         bool             `json:"degraded"`
	ValidationStatus ValidationStatus `json:"validationStatus"`
}
