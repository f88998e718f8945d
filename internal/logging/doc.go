// Package logging assembles structured slog loggers used across the
// marketplace daemon and CLI.
//
// It owns the console and JSON handlers, level parsing, and output fan-out to
// stdout plus the configured log file, and exposes context-aware helpers so
// HTTP handlers and task handlers tag lines with request, user, and task
// identifiers. NewNop serves tests and wiring code that cannot fail.
package logging
