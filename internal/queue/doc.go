// Package queue persists background tasks in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages the tasks database, schema initialization, claiming,
// heartbeat tracking, stale-task recovery, retry bookkeeping, and the
// maintenance queries behind `mkt tasks`. A task carries a kind, a JSON
// payload, and an attempt counter; workers claim pending tasks of the kinds
// they handle and report completion or failure.
//
// The database is treated as transient storage for in-flight work rather than
// a long-term archive. Schema changes bump schemaVersion; operators clear the
// database to adopt the new schema.
package queue
