// Package metric provides Prometheus metrics for rolloutkv.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry, recording helpers and HTTP handler
//   - collector.go: Collector reporting per-instance storage statistics
//
// Metrics include:
//
//   - HTTP and Connect request counters and latency histograms
//   - Engine operation counters and latency histograms by selector
//   - Live engine instance count and per-instance key counts
//   - Admin authentication failures and rate-limited requests
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
