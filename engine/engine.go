// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/stratum/ai"
	"github.com/poiesic/stratum/budget"
	"github.com/poiesic/stratum/classify"
	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/fusion"
	"github.com/poiesic/stratum/plan"
	"github.com/poiesic/stratum/prompt"
	"github.com/poiesic/stratum/retrieval"
	"github.com/poiesic/stratum/storage"
	"github.com/poiesic/stratum/validate"
	"github.com/poiesic/stratum/visualize"
)

// NoEvidenceText is the answer delivered when retrieval finds nothing.
const NoEvidenceText = "No voxels in the dataset match this query, so there is no evidence to answer it."

var tracer = otel.Tracer("github.com/poiesic/stratum/engine")

// Engine answers free-text questions about the voxel dataset. It holds no
// per-query state and is safe for concurrent use.
type Engine struct {
	classifier *classify.Classifier
	planner    *plan.Planner
	graph      *retrieval.GraphRetriever
	vector     *retrieval.VectorRetriever
	budgeter   *budget.Budgeter
	validator  *validate.Validator
	embedder   ai.Embedder
	generator  ai.Generator
	dispatcher *visualize.Dispatcher
	monitor    Monitor
	config     Config
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig replaces the pipeline configuration.
// Default is DefaultConfig().
func WithConfig(cfg Config) Option {
	return func(e *Engine) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.config = cfg
		return nil
	}
}

// WithClassifier sets the task classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(e *Engine) error {
		e.classifier = c
		return nil
	}
}

// WithPlanner sets the query planner.
func WithPlanner(p *plan.Planner) Option {
	return func(e *Engine) error {
		e.planner = p
		return nil
	}
}

// WithBudgeter sets the context budgeter.
func WithBudgeter(b *budget.Budgeter) Option {
	return func(e *Engine) error {
		e.budgeter = b
		return nil
	}
}

// WithEmbedder overrides the provider's embedder for query embeddings,
// typically with a caching wrapper.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(e *Engine) error {
		e.embedder = embedder
		return nil
	}
}

// WithDispatcher sends the cited voxels of every delivered answer to a
// viewer. The caller owns the dispatcher and releases it.
func WithDispatcher(d *visualize.Dispatcher) Option {
	return func(e *Engine) error {
		e.dispatcher = d
		return nil
	}
}

// WithMonitor sets a lifecycle monitor.
func WithMonitor(m Monitor) Option {
	return func(e *Engine) error {
		if m == nil {
			m = &noopMonitor{}
		}
		e.monitor = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an engine over store and index, generating with provider.
func New(store storage.VoxelStore, index storage.VectorIndex, provider ai.AIProvider, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		embedder:  provider.Embedder(),
		generator: provider.Generator(),
		monitor:   &noopMonitor{},
		config:    DefaultConfig(),
		logger:    slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	var err error
	if e.classifier == nil {
		if e.classifier, err = classify.New(); err != nil {
			return nil, err
		}
	}
	if e.planner == nil {
		if e.planner, err = plan.New(); err != nil {
			return nil, err
		}
	}
	if e.budgeter == nil {
		if e.budgeter, err = budget.New(); err != nil {
			return nil, err
		}
	}
	if e.graph, err = retrieval.NewGraphRetriever(store); err != nil {
		return nil, err
	}
	if e.vector, err = retrieval.NewVectorRetriever(e.embedder, index, store); err != nil {
		return nil, err
	}
	if e.validator, err = validate.New(); err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the pipeline configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Result is a delivered answer with the intermediate values that led to it.
type Result struct {
	QueryID        string
	Answer         core.Answer
	Classification core.Classification
	Spec           core.ConstraintSpec
	Context        core.Context
	// Conditions lists the non-fatal conditions absorbed along the way.
	Conditions []error
	States     []State
}

// Has reports whether condition was recorded for the query.
func (r *Result) Has(condition error) bool {
	return slices.ContainsFunc(r.Conditions, func(err error) bool {
		return errors.Is(err, condition)
	})
}

func (r *Result) note(condition error) {
	r.Conditions = append(r.Conditions, condition)
}

// Ask answers query. Only generation failures (core.ErrGenerationFailure)
// and query deadline exhaustion (core.ErrDeadlineExceeded) are returned as
// errors; every other condition is recorded on the Result.
func (e *Engine) Ask(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	res := &Result{QueryID: uuid.NewString()}
	logger := e.logger.With("query_id", res.QueryID)

	if e.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.QueryTimeout)
		defer cancel()
	}
	ctx, span := tracer.Start(ctx, "engine.Ask",
		trace.WithAttributes(attribute.String("query.id", res.QueryID)))
	defer span.End()

	e.monitor.Start(res.QueryID, query)
	lc := newLifecycle()
	err := e.run(ctx, query, res, lc, logger)
	res.States = lc.history
	e.monitor.Finish(res.QueryID, res.Answer, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("query failed", "state", lc.state, "elapsed", time.Since(start), "err", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("query.task", res.Answer.TaskType.String()),
		attribute.String("query.status", string(res.Answer.ValidationStatus)),
		attribute.Bool("query.degraded", res.Answer.Degraded),
	)
	logger.Info("query answered",
		"task", res.Answer.TaskType,
		"status", res.Answer.ValidationStatus,
		"cited", len(res.Answer.CitedEntityIDs),
		"degraded", res.Answer.Degraded,
		"elapsed", time.Since(start))
	return res, nil
}

func (e *Engine) run(ctx context.Context, query string, res *Result, lc *lifecycle, logger *slog.Logger) error {
	c := e.classifier.Classify(query)
	res.Classification = c
	if c.LowConfidence {
		res.note(fmt.Errorf("%w: defaulted to %s at confidence %.2f", core.ErrClassificationAmbiguous, c.Task, c.Confidence))
	}
	if err := lc.advance(Classified); err != nil {
		return err
	}
	e.monitor.Classified(res.QueryID, c)

	spec := e.planner.Plan(query, c.Task)
	res.Spec = spec
	if spec.Underspecified {
		res.note(fmt.Errorf("%w: %s", core.ErrPlanUnderspecified, c.Task))
	}
	if err := lc.advance(Planned); err != nil {
		return err
	}
	e.monitor.Planned(res.QueryID, spec)
	logger.Debug("query planned", "task", c.Task, "confidence", c.Confidence,
		"constraints", len(spec.Constraints), "underspecified", spec.Underspecified)

	r, err := e.retrieve(ctx, res.QueryID, query, c.Task, spec)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrDeadlineExceeded, err)
	}
	for _, err := range r.failures {
		res.note(err)
	}
	if err := lc.advance(Retrieved); err != nil {
		return err
	}

	weights := e.config.Weights[c.Task].For(spec)
	if !r.graphUsed {
		weights = fusion.VectorOnly()
	}
	fused := fusion.Fuse(r.graph, r.vector, weights, e.config.FusionLimit)
	if err := lc.advance(Fused); err != nil {
		return err
	}
	e.monitor.Fused(res.QueryID, fused)

	degraded := len(r.failures) > 0
	if len(fused.Candidates) == 0 {
		res.note(core.ErrRetrievalEmpty)
		res.Answer = core.Answer{
			TaskType:         c.Task,
			AnswerText:       NoEvidenceText,
			CitedEntityIDs:   []string{},
			Confidence:       c.Confidence,
			Degraded:         degraded,
			ValidationStatus: core.StatusValid,
		}
		return lc.advance(Delivered)
	}

	bctx := e.budgeter.Build(fused, c.Task)
	res.Context = bctx
	if bctx.Truncated {
		res.note(fmt.Errorf("%w: kept %d of %d", core.ErrContextOverflow, len(bctx.Entries), bctx.Total))
	}
	if err := lc.advance(Budgeted); err != nil {
		return err
	}
	e.monitor.Budgeted(res.QueryID, bctx)

	p, err := prompt.Assemble(bctx, c.Task, query)
	if err != nil {
		return err
	}
	if err := lc.advance(Prompted); err != nil {
		return err
	}

	out, err := e.generate(ctx, p, bctx)
	if err != nil {
		return err
	}
	if err := lc.move(Generated, Validated); err != nil {
		return err
	}
	if out.Retried {
		res.note(fmt.Errorf("%w: %s", core.ErrHallucinationDetected, strings.Join(out.Unknown, ", ")))
		if err := lc.move(Retried, Generated, Validated); err != nil {
			return err
		}
	}
	e.monitor.Validated(res.QueryID, out.Status, out.Retried)

	res.Answer = core.Answer{
		TaskType:         c.Task,
		AnswerText:       out.Answer,
		CitedEntityIDs:   out.IDs,
		Confidence:       c.Confidence,
		Degraded:         degraded,
		ValidationStatus: out.Status,
	}
	if out.Status == core.StatusRefused {
		res.Answer.Confidence = 0
		return lc.advance(Refused)
	}
	if err := lc.advance(Delivered); err != nil {
		return err
	}

	if e.dispatcher != nil {
		snapshots := make(map[string]*core.Voxel, len(fused.Candidates))
		for _, fc := range fused.Candidates {
			snapshots[fc.ID] = fc.Snapshot
		}
		e.dispatcher.Dispatch(res.QueryID, visualize.Marks(out.IDs, snapshots))
	}
	return nil
}

type retrieved struct {
	graph, vector []core.Candidate
	// graphUsed is false when the graph channel was skipped or failed.
	graphUsed bool
	failures  []error
}

// retrieve runs both channels concurrently. A channel that fails or times
// out contributes nothing and is reported in failures. Only the end of the
// query context is returned as an error; it also stops the other channel.
func (e *Engine) retrieve(ctx context.Context, queryID, query string, task core.TaskType, spec core.ConstraintSpec) (retrieved, error) {
	var (
		r                   retrieved
		graphErr, vectorErr error
	)
	runGraph := !spec.Underspecified && !spec.IsEmpty()
	params := e.config.Vector[task]

	g, gctx := errgroup.WithContext(ctx)
	if runGraph {
		g.Go(func() error {
			r.graph, graphErr = e.channel(gctx, queryID, core.SourceGraph, e.config.GraphTimeout,
				func(ctx context.Context) ([]core.Candidate, error) {
					return e.graph.Retrieve(ctx, spec)
				})
			return ctx.Err()
		})
	}
	g.Go(func() error {
		r.vector, vectorErr = e.channel(gctx, queryID, core.SourceVector, e.config.VectorTimeout,
			func(ctx context.Context) ([]core.Candidate, error) {
				return e.vector.Retrieve(ctx, query, params.K, params.Threshold)
			})
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return retrieved{}, err
	}

	r.graphUsed = runGraph && graphErr == nil
	if graphErr != nil {
		r.failures = append(r.failures, graphErr)
	}
	if vectorErr != nil {
		r.failures = append(r.failures, vectorErr)
	}
	return r, nil
}

// channel calls fn under its own timeout and stops waiting when the timeout
// elapses, even if fn ignores cancellation.
func (e *Engine) channel(
	ctx context.Context,
	queryID string,
	source core.Source,
	timeout time.Duration,
	fn func(context.Context) ([]core.Candidate, error),
) ([]core.Candidate, error) {
	ctx, span := tracer.Start(ctx, "engine.retrieve."+string(source))
	defer span.End()

	start := time.Now()
	cctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type outcome struct {
		hits []core.Candidate
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		hits, err := fn(cctx)
		done <- outcome{hits: hits, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-cctx.Done():
		select {
		case out = <-done:
		default:
			out.err = cctx.Err()
		}
	}

	if out.err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
		out.err = fmt.Errorf("%w: %s channel exceeded %s: %w", core.ErrRetrievalTimeout, source, timeout, out.err)
	} else if out.err != nil {
		out.err = fmt.Errorf("%s channel: %w", source, out.err)
	}
	e.monitor.ChannelDone(queryID, source, len(out.hits), time.Since(start), out.err)

	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
		e.logger.Warn("retrieval channel failed, continuing degraded",
			"query_id", queryID, "source", source, "err", out.err)
		return nil, out.err
	}
	span.SetAttributes(attribute.Int("retrieval.hits", len(out.hits)))
	return out.hits, nil
}

// generate runs generation and validation under the generation timeout.
// The call is abandoned, not awaited, once the query is cancelled.
func (e *Engine) generate(ctx context.Context, p core.Prompt, bctx core.Context) (validate.Outcome, error) {
	ctx, span := tracer.Start(ctx, "engine.generate")
	defer span.End()

	gctx, cancel := ctx, context.CancelFunc(func() {})
	if e.config.GenerationTimeout > 0 {
		gctx, cancel = context.WithTimeout(ctx, e.config.GenerationTimeout)
	}
	defer cancel()

	type outcome struct {
		out validate.Outcome
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := e.validator.Run(gctx, e.generator, p, bctx)
		done <- outcome{out: out, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-gctx.Done():
		select {
		case res = <-done:
		default:
			res.err = fmt.Errorf("%w: %w", core.ErrGenerationFailure, gctx.Err())
		}
	}

	if err := ctx.Err(); err != nil {
		res.err = fmt.Errorf("%w: %w", core.ErrDeadlineExceeded, err)
	}
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
		return validate.Outcome{}, res.err
	}
	span.SetAttributes(
		attribute.String("generation.status", string(res.out.Status)),
		attribute.Bool("generation.retried", res.out.Retried),
	)
	return res.out, nil
}
