package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/poiesic/stratum/core"
)

func newTestCollector() *Collector {
	return NewCollector("stratum_test", prometheus.NewRegistry())
}

func TestCollector_Finish(t *testing.T) {
	c := newTestCollector()

	c.Finish("q1", core.Answer{TaskType: core.TaskFiltering, ValidationStatus: core.StatusValid}, time.Second, nil)
	c.Finish("q2", core.Answer{TaskType: core.TaskFiltering, ValidationStatus: core.StatusValid, Degraded: true}, time.Second, nil)
	c.Finish("q3", core.Answer{TaskType: core.TaskReasoning, ValidationStatus: core.StatusRefused}, time.Second, nil)
	c.Finish("q4", core.Answer{}, time.Second, core.ErrGenerationFailure)
	c.Finish("q5", core.Answer{}, time.Second, core.ErrDeadlineExceeded)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.queriesTotal.WithLabelValues("Filtering", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queriesTotal.WithLabelValues("Filtering", "degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queriesTotal.WithLabelValues("Reasoning", "refused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queriesTotal.WithLabelValues("unknown", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queriesTotal.WithLabelValues("unknown", "deadline")))
}

func TestCollector_ChannelDone(t *testing.T) {
	c := newTestCollector()

	c.ChannelDone("q1", core.SourceGraph, 3, 10*time.Millisecond, nil)
	c.ChannelDone("q2", core.SourceGraph, 0, time.Second, errors.Join(core.ErrRetrievalTimeout))
	c.ChannelDone("q3", core.SourceVector, 0, time.Millisecond, errors.New("index offline"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.channelFailures.WithLabelValues("graph", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.channelFailures.WithLabelValues("vector", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.channelHits))
}

func TestCollector_Stages(t *testing.T) {
	c := newTestCollector()

	c.Classified("q", core.Classification{Task: core.TaskSummarization, LowConfidence: true})
	c.Planned("q", core.ConstraintSpec{Underspecified: true})
	c.Budgeted("q", core.Context{Entries: make([]core.ContextEntry, 20), Truncated: true})
	c.Validated("q", core.StatusCorrected, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.lowConfidence))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.underspecified))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.truncatedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.validationsTotal.WithLabelValues("Corrected")))
}
