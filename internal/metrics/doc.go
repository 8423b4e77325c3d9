// Package metrics exposes sync counters to Prometheus and serves the
// /metrics and /healthz endpoints.
package metrics
