// Package history records transmitter state machine transitions.
//
// The supervisor's connection, broadcast, and watchdog machines each
// publish snapshots on the event bus; the Recorder diffs consecutive
// snapshots and persists every edge as a Transition row in SQLite.
// The result is a queryable local timeline of what the transmitter
// did and when, independent of the time-series database.
//
// Rows are pruned by age via Prune, typically from the daemon's
// maintenance loop.
package history
