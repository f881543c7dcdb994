package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/fusion"
	"github.com/poiesic/stratum/retrieval"
)

// Config tunes the query pipeline. The zero value of a timeout disables it.
type Config struct {
	// Vector holds the per-task k and similarity threshold.
	Vector map[core.TaskType]retrieval.VectorParams `yaml:"vector"`

	// Weights holds the per-task fusion weights.
	Weights map[core.TaskType]fusion.Weights `yaml:"weights"`

	// FusionLimit caps fused candidates before budgeting. 0 keeps all.
	FusionLimit int `yaml:"fusion_limit" validate:"gte=0"`

	GraphTimeout      time.Duration `yaml:"graph_timeout" validate:"gte=0"`
	VectorTimeout     time.Duration `yaml:"vector_timeout" validate:"gte=0"`
	GenerationTimeout time.Duration `yaml:"generation_timeout" validate:"gte=0"`
	QueryTimeout      time.Duration `yaml:"query_timeout" validate:"gte=0"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Vector:            retrieval.DefaultVectorParams(),
		Weights:           fusion.DefaultWeights(),
		FusionLimit:       500,
		GraphTimeout:      2 * time.Second,
		VectorTimeout:     3 * time.Second,
		GenerationTimeout: 60 * time.Second,
		QueryTimeout:      90 * time.Second,
	}
}

// Validate checks that every task has vector parameters and valid weights.
func (c Config) Validate() error {
	var errs []error
	for _, task := range core.TaskTypes() {
		vp, ok := c.Vector[task]
		if !ok {
			errs = append(errs, fmt.Errorf("no vector parameters for %s", task))
		} else if vp.K < 0 || vp.Threshold < -1 || vp.Threshold > 1 {
			errs = append(errs, fmt.Errorf("vector parameters for %s out of range: k=%d threshold=%v", task, vp.K, vp.Threshold))
		}
		w, ok := c.Weights[task]
		if !ok {
			errs = append(errs, fmt.Errorf("no fusion weights for %s", task))
		} else if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", task, err))
		}
	}
	if c.FusionLimit < 0 {
		errs = append(errs, fmt.Errorf("fusion limit must not be negative"))
	}
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{"graph", c.GraphTimeout},
		{"vector", c.VectorTimeout},
		{"generation", c.GenerationTimeout},
		{"query", c.QueryTimeout},
	}
	for _, t := range timeouts {
		if t.d < 0 {
			errs = append(errs, fmt.Errorf("%s timeout must not be negative", t.name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
