// Package sqlitedb opens SQLite databases with the pragmas, schema version
// check, and busy-retry behaviour shared by the marketplace store and the task
// queue.
package sqlitedb
