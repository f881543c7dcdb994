package engine

import (
	"time"

	"github.com/poiesic/stratum/core"
)

// Monitor provides hooks to observe a query as it moves through the
// lifecycle. Implementations must be safe for concurrent queries; the
// channel hooks are called from the retrieval goroutines.
type Monitor interface {
	Start(queryID, query string)
	Classified(queryID string, c core.Classification)
	Planned(queryID string, spec core.ConstraintSpec)
	ChannelDone(queryID string, source core.Source, hits int, elapsed time.Duration, err error)
	Fused(queryID string, result core.FusedResult)
	Budgeted(queryID string, ctx core.Context)
	Validated(queryID string, status core.ValidationStatus, retried bool)
	Finish(queryID string, answer core.Answer, elapsed time.Duration, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                                                    {}
func (n *noopMonitor) Classified(_ string, _ core.Classification)                           {}
func (n *noopMonitor) Planned(_ string, _ core.ConstraintSpec)                              {}
func (n *noopMonitor) ChannelDone(_ string, _ core.Source, _ int, _ time.Duration, _ error) {}
func (n *noopMonitor) Fused(_ string, _ core.FusedResult)                                   {}
func (n *noopMonitor) Budgeted(_ string, _ core.Context)                                    {}
func (n *noopMonitor) Validated(_ string, _ core.ValidationStatus, _ bool)                  {}
func (n *noopMonitor) Finish(_ string, _ core.Answer, _ time.Duration, _ error)             {}
