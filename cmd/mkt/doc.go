// Command mkt runs and administers the marketplace developer hub.
//
// "mkt serve" runs the daemon: the HTTP API, the task worker, and the
// nightly stats schedules. The remaining commands work directly against the
// configured databases and are safe to run while the daemon is up.
package main
