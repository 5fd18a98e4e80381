// Package metrics exposes Prometheus instrumentation for the peerkit
// transport support layer.
//
// Each [Metrics] owns its own registry so several runtimes (and tests) can
// coexist in one process. A nil *Metrics is valid and records nothing, which
// lets every component accept metrics as an optional dependency.
//
//	m := metrics.New()
//	http.Handle("/metrics", m.Handler())
package metrics
