// Package metrics exposes Prometheus instrumentation for the watcher, the
// readiness checker, the claim ledger, and the conversion runner, plus the small
// HTTP server that serves /metrics.
package metrics
