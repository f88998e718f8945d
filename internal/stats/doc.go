// Package stats plans and executes stats indexing.
//
// The planner selects raw stats rows (update counts, download counts,
// installs, collection counts) and enqueues index_stats tasks of at most
// tasks.chunk_size row ids each, one queue transaction per batch. Without a
// date or addon filter the whole history is walked newest first in windows
// of stats.step_days so recent stats are indexed before old ones. Fixup
// compares per-addon row counts with the index and re-queues missing rows.
package stats
