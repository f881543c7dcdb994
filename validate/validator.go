// Package validate checks generated answers against their context.
//
// A cited voxel id that is not in the context is a hallucination. The
// validator allows exactly one corrective retry; an answer that is still
// ungrounded after it is replaced by a fixed refusal with no citations.
package validate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/prompt"
)

// RefusalText is delivered in place of an answer that could not be grounded.
const RefusalText = "The retrieved data does not support a verifiable answer to this question."

// Outcome is the result of validating a generation.
type Outcome struct {
	Status  core.ValidationStatus
	Answer  string
	IDs     []string
	Retried bool
	// Unknown holds the ids the first answer cited outside the context.
	Unknown []string
}

// Validator runs generation with citation checking. It holds no per-query
// state and is safe for concurrent use.
type Validator struct {
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) error {
		if logger == nil {
			logger = slog.Default()
		}
		v.logger = logger
		return nil
	}
}

// New creates a validator.
func New(opts ...Option) (*Validator, error) {
	v := &Validator{logger: slog.Default().With("component", "validator")}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Run generates an answer to p and validates it against c. It returns a
// core.ErrGenerationFailure error if the generator fails on either call.
func (v *Validator) Run(ctx context.Context, gen ai.Generator, p core.Prompt, c core.Context) (Outcome, error) {
	first, err := generate(ctx, gen, p)
	if err != nil {
		return Outcome{}, err
	}

	parsed := Parse(first)
	unknown := Check(parsed, c)
	if len(unknown) == 0 {
		return Outcome{Status: core.StatusValid, Answer: parsed.Answer, IDs: cited(parsed)}, nil
	}

	v.logger.Info("answer cites voxels outside the context, retrying",
		"task", p.Task, "unknown", unknown)

	retry, err := generate(ctx, gen, prompt.Correction(p, c.SortedIDs(), unknown))
	if err != nil {
		return Outcome{}, err
	}

	reparsed := Parse(retry)
	if still := Check(reparsed, c); len(still) > 0 {
		v.logger.Warn("corrected answer still ungrounded, refusing",
			"task", p.Task, "unknown", still)
		return Outcome{
			Status:  core.StatusRefused,
			Answer:  RefusalText,
			IDs:     []string{},
			Retried: true,
			Unknown: unknown,
		}, nil
	}

	return Outcome{
		Status:  core.StatusCorrected,
		Answer:  reparsed.Answer,
		IDs:     cited(reparsed),
		Retried: true,
		Unknown: unknown,
	}, nil
}

func generate(ctx context.Context, gen ai.Generator, p core.Prompt) (string, error) {
	text, err := gen.Generate(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrGenerationFailure, err)
	}
	return text, nil
}

func cited(p Parsed) []string {
	if p.IDs == nil {
		return []string{}
	}
	return p.IDs
}
