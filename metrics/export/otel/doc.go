// Package otel binds authkit metrics to an OpenTelemetry meter.
//
// [NewExporter] registers one Int64ObservableCounter per authkit counter and one
// Int64ObservableGauge per latency bucket, all fed by a single callback that reads
// one snapshot per collection cycle. Callers own the MeterProvider.
package otel
