// Package metrics exposes query lifecycle metrics to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/poiesic/stratum/core"
	"github.com/poiesic/stratum/engine"
)

// Collector records query metrics. It implements engine.Monitor.
type Collector struct {
	queriesTotal     *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	channelDuration  *prometheus.HistogramVec
	channelHits      *prometheus.HistogramVec
	channelFailures  *prometheus.CounterVec
	fusedCandidates  prometheus.Histogram
	contextEntries   prometheus.Histogram
	truncatedTotal   prometheus.Counter
	validationsTotal *prometheus.CounterVec
	lowConfidence    prometheus.Counter
	underspecified   prometheus.Counter
}

var _ engine.Monitor = (*Collector)(nil)

// NewCollector registers the collectors with reg under namespace. A nil
// reg uses the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of queries by task type and outcome",
		}, []string{"task", "outcome"}),

		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end query duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"task"}),

		channelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval channel duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),

		channelHits: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_hits",
			Help:      "Candidates returned per retrieval channel",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"channel"}),

		channelFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Retrieval channel failures by reason",
		}, []string{"channel", "reason"}),

		fusedCandidates: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fused_candidates",
			Help:      "Candidates after fusion",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		contextEntries: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "context_entries",
			Help:      "Voxels kept in the generation context",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),

		truncatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_truncated_total",
			Help:      "Contexts truncated to fit the budget",
		}),

		validationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Answer validations by status",
		}, []string{"status"}),

		lowConfidence: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_low_confidence_total",
			Help:      "Queries classified below the confidence threshold",
		}),

		underspecified: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_underspecified_total",
			Help:      "Queries whose plan fell back to vector-only retrieval",
		}),
	}
}

func (c *Collector) Start(_, _ string) {}

func (c *Collector) Classified(_ string, cl core.Classification) {
	if cl.LowConfidence {
		c.lowConfidence.Inc()
	}
}

func (c *Collector) Planned(_ string, spec core.ConstraintSpec) {
	if spec.Underspecified {
		c.underspecified.Inc()
	}
}

func (c *Collector) ChannelDone(_ string, source core.Source, hits int, elapsed time.Duration, err error) {
	channel := string(source)
	c.channelDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
	if err != nil {
		reason := "error"
		if errors.Is(err, core.ErrRetrievalTimeout) {
			reason = "timeout"
		}
		c.channelFailures.WithLabelValues(channel, reason).Inc()
		return
	}
	c.channelHits.WithLabelValues(channel).Observe(float64(hits))
}

func (c *Collector) Fused(_ string, result core.FusedResult) {
	c.fusedCandidates.Observe(float64(len(result.Candidates)))
}

func (c *Collector) Budgeted(_ string, ctx core.Context) {
	c.contextEntries.Observe(float64(len(ctx.Entries)))
	if ctx.Truncated {
		c.truncatedTotal.Inc()
	}
}

func (c *Collector) Validated(_ string, status core.ValidationStatus, _ bool) {
	c.validationsTotal.WithLabelValues(string(status)).Inc()
}

func (c *Collector) Finish(_ string, answer core.Answer, elapsed time.Duration, err error) {
	task := answer.TaskType.String()
	outcome := outcomeOf(answer, err)
	if err != nil {
		task = "unknown"
	}
	c.queriesTotal.WithLabelValues(task, outcome).Inc()
	c.queryDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

func outcomeOf(answer core.Answer, err error) string {
	switch {
	case errors.Is(err, core.ErrDeadlineExceeded):
		return "deadline"
	case err != nil:
		return "failed"
	case answer.ValidationStatus == core.StatusRefused:
		return "refused"
	case answer.Degraded:
		return "degraded"
	default:
		return "delivered"
	}
}
