// Package metrics exposes Prometheus collectors for the marketplace daemon.
//
// A Metrics value owns its registry, so tests and multiple servers in one
// process do not collide. The API server mounts Handler at /metrics when
// server.metrics_enabled is set; the worker manager and PayPal client report
// through the Metrics methods.
package metrics
