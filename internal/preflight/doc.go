// Package preflight provides readiness checks for the filesystem paths and
// external services the marketplace depends on.
//
// The daemon logs RunAll results on startup and the CLI "mkt check" command
// renders them as a table. Payment checks are skipped when payments are
// disabled.
package preflight
