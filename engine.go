package medconfirm

import (
	"time"

	"github.com/MrEthical07/medconfirm/internal/limiters"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Engine runs confirmation flows. It is safe for concurrent use once built
// with [Builder.Build]; each page load gets its own [Flow].
type Engine struct {
	config   Config
	redis    redis.UniversalClient
	attempts AttemptStore
	limiter  *limiters.ConfirmationLimiter
	identity IdentityService
	records  RecordStore
	audit    *auditDispatcher
	metrics  *Metrics
	logger   zerolog.Logger
	clock    func() time.Time
}

// Close drains and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByEvent returns dropped audit events per event type. Every
// known type is present, with zero when nothing was dropped.
func (e *Engine) AuditDroppedByEvent() map[string]uint64 {
	var d *auditDispatcher
	if e != nil {
		d = e.audit
	}
	return d.DroppedByEvent()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}
