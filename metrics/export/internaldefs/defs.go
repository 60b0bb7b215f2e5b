package internaldefs

import (
	"github.com/MrEthical07/medconfirm"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   medconfirm.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   medconfirm.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: medconfirm.MetricConfirmationStarted, Name: "medconfirm_confirmation_started_total", Help: "Confirmation flows that passed the re-entrancy latch."},
	{ID: medconfirm.MetricConfirmationSuccess, Name: "medconfirm_confirmation_success_total", Help: "Confirmed doctor emails."},
	{ID: medconfirm.MetricConfirmationFailure, Name: "medconfirm_confirmation_failure_total", Help: "Confirmation flows ending in an error outcome."},
	{ID: medconfirm.MetricDuplicateRun, Name: "medconfirm_duplicate_run_total", Help: "Runs rejected by the re-entrancy latch."},
	{ID: medconfirm.MetricUntrustedOrigin, Name: "medconfirm_untrusted_origin_total", Help: "Runs rejected by the origin allow-list."},
	{ID: medconfirm.MetricConfirmationRateLimited, Name: "medconfirm_rate_limited_total", Help: "Runs rejected by the per-device attempt cap."},
	{ID: medconfirm.MetricMissingToken, Name: "medconfirm_missing_token_total", Help: "Links without a confirmation token."},
	{ID: medconfirm.MetricMalformedToken, Name: "medconfirm_malformed_token_total", Help: "Access tokens rejected by the shape check."},
	{ID: medconfirm.MetricExchangeTimeout, Name: "medconfirm_exchange_timeout_total", Help: "Identity exchanges that hit the deadline."},
	{ID: medconfirm.MetricLinkExpired, Name: "medconfirm_link_expired_total", Help: "Expired or invalid confirmation links."},
	{ID: medconfirm.MetricExchangeRejected, Name: "medconfirm_exchange_rejected_total", Help: "Other identity exchange failures."},
	{ID: medconfirm.MetricAccountNotFound, Name: "medconfirm_account_not_found_total", Help: "Confirmed users without a doctor record."},
	{ID: medconfirm.MetricRecordLookupFailure, Name: "medconfirm_record_lookup_failure_total", Help: "Doctor record lookup errors."},
	{ID: medconfirm.MetricBestEffortFailure, Name: "medconfirm_best_effort_failure_total", Help: "Failed post-confirmation bookkeeping steps."},
}

var HistogramDefs = []HistogramDef{
	{ID: medconfirm.MetricExchangeLatency, Name: "medconfirm_exchange_latency_seconds", Help: "Identity exchange latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's latency
// buckets except the last, which is +Inf.
var HistogramBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 5, 30}

// BucketCount is the number of engine histogram buckets, +Inf included.
const BucketCount = 8

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
