// Package worker drains the task queue with registered handlers.
//
// A Manager runs one goroutine per lane. Each lane claims tasks of the kinds
// registered to it, keeps a heartbeat alive while the handler runs, and
// reports success or failure back to the queue, which decides whether the
// task is retried. One lane also reclaims tasks whose heartbeat went stale.
package worker
