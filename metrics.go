package medconfirm

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricConfirmationStarted counts flows that passed the re-entrancy latch.
	MetricConfirmationStarted MetricID = iota
	// MetricConfirmationSuccess counts confirmed emails.
	MetricConfirmationSuccess
	// MetricConfirmationFailure counts every terminal error outcome.
	MetricConfirmationFailure
	// MetricDuplicateRun counts runs rejected by the latch.
	MetricDuplicateRun
	// MetricUntrustedOrigin counts origin allow-list rejections.
	MetricUntrustedOrigin
	// MetricConfirmationRateLimited counts runs rejected by the attempt cap.
	MetricConfirmationRateLimited
	// MetricMissingToken counts links without a token.
	MetricMissingToken
	// MetricMalformedToken counts shape-check rejections.
	MetricMalformedToken
	// MetricExchangeTimeout counts exchanges that hit the deadline.
	MetricExchangeTimeout
	// MetricLinkExpired counts expired or invalid links.
	MetricLinkExpired
	// MetricExchangeRejected counts other exchange failures.
	MetricExchangeRejected
	// MetricAccountNotFound counts confirmed users without a doctor record.
	MetricAccountNotFound
	// MetricRecordLookupFailure counts doctor record lookup errors.
	MetricRecordLookupFailure
	// MetricBestEffortFailure counts failed post-confirmation bookkeeping.
	MetricBestEffortFailure
	// MetricExchangeLatency is the identity exchange latency histogram.
	MetricExchangeLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and a fixed-bucket latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter. Unknown IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the exchange latency histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricExchangeLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricExchangeLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricExchangeLatency].buckets[i])
		}
		s.Histograms[MetricExchangeLatency] = buckets
	}

	return s
}

// Exchange calls are network-bound; buckets run from 50ms to 30s.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 5000:
		return 5
	case ms <= 30000:
		return 6
	default:
		return 7
	}
}
