// Package classify maps free-text questions to one of the nine task types.
//
// Each task type owns a group of weighted regular expressions. A group's
// confidence combines the weights of its matching patterns as independent
// evidence, 1 - Π(1 - w), so it stays in [0,1] and grows with every extra
// cue. The most confident group wins; equal confidences resolve to the
// task listed first in core.TaskTypes. Questions no group is confident
// about fall back to Summarization and are flagged LowConfidence.
package classify

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/poiesic/stratum/core"
)

// DefaultMinConfidence is the confidence a group must reach to win.
const DefaultMinConfidence = 0.4

// Pattern is one weighted cue for a task type.
type Pattern struct {
	Expr   *regexp.Regexp
	Weight float64
}

// P compiles a case-insensitive pattern. It panics on an invalid
// expression and is meant for package-level tables.
func P(expr string, weight float64) Pattern {
	return Pattern{Expr: regexp.MustCompile(`(?i)` + expr), Weight: weight}
}

// Classifier is safe for concurrent use once constructed.
type Classifier struct {
	groups        map[core.TaskType][]Pattern
	minConfidence float64
	logger        *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier) error

// WithMinConfidence sets the fallback threshold.
func WithMinConfidence(min float64) Option {
	return func(c *Classifier) error {
		if min < 0 || min > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidConfidence, min)
		}
		c.minConfidence = min
		return nil
	}
}

// WithPatterns replaces the matcher group of one task type.
func WithPatterns(task core.TaskType, patterns ...Pattern) Option {
	return func(c *Classifier) error {
		if !task.Valid() {
			return fmt.Errorf("%w: %d", core.ErrInvalidTaskType, int(task))
		}
		for _, p := range patterns {
			if p.Expr == nil || p.Weight < 0 || p.Weight > 1 {
				return fmt.Errorf("%w: %s", ErrInvalidPattern, task)
			}
		}
		c.groups[task] = patterns
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// New creates a classifier with the default matcher groups.
func New(opts ...Option) (*Classifier, error) {
	c := &Classifier{
		groups:        DefaultPatterns(),
		minConfidence: DefaultMinConfidence,
		logger:        slog.Default().With("component", "classifier"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Classify resolves text to exactly one task type.
func (c *Classifier) Classify(text string) core.Classification {
	best := core.Classification{Task: core.TaskSummarization}
	for _, task := range core.TaskTypes() {
		conf := confidence(c.groups[task], text)
		// Strictly greater keeps the higher priority task on ties.
		if conf > best.Confidence {
			best.Task = task
			best.Confidence = conf
		}
	}

	if best.Confidence < c.minConfidence {
		c.logger.Debug("classification below threshold",
			"best", best.Task, "confidence", best.Confidence, "min", c.minConfidence)
		return core.Classification{
			Task:          core.TaskSummarization,
			Confidence:    best.Confidence,
			LowConfidence: true,
		}
	}

	c.logger.Debug("classified query", "task", best.Task, "confidence", best.Confidence)
	return best
}

// Scores returns the confidence of every group, for diagnostics.
func (c *Classifier) Scores(text string) map[core.TaskType]float64 {
	scores := make(map[core.TaskType]float64, len(c.groups))
	for _, task := range core.TaskTypes() {
		scores[task] = confidence(c.groups[task], text)
	}
	return scores
}

func confidence(patterns []Pattern, text string) float64 {
	miss := 1.0
	for _, p := range patterns {
		if p.Expr.MatchString(text) {
			miss *= 1 - p.Weight
		}
	}
	return 1 - miss
}
