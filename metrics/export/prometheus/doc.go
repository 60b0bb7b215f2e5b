// Package prometheus exposes the engine's in-process metrics through
// client_golang.
//
// [NewCollector] reads [medconfirm.Engine.MetricsSnapshot] on every scrape and
// emits const metrics, so the engine keeps its lock-free counters and the
// exporter owns no state. [NewExporter] bundles the collector with Go runtime
// and process collectors in a private registry and serves it with promhttp.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
