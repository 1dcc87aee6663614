// Package prometheus exposes authkit metrics through client_golang.
//
// [Exporter] implements [prometheus.Collector]. Each scrape reads one
// [authkit.MetricsSnapshot] and emits const metrics: authkit_*_total counters and
// the authkit_validate_latency_seconds histogram. Register it on any registry or
// mount [Exporter.Handler], which serves a private registry.
//
// The exporter never mutates kit state.
package prometheus
