// Package daemon coordinates the long-running marketplace process.
//
// It wires the task queue, the worker manager, the HTTP API, and the stats
// indexing schedules into a single lifecycle with flock-based locking to
// prevent multiple instances. Tasks left running by a crashed process are
// returned to pending on start.
//
// Keep orchestration logic here: task handlers live in their own packages
// while the daemon focuses on startup, shutdown, and status reporting.
package daemon
