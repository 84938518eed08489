// Package store provides abstractions and implementations for persisting
// task snapshots. Snapshots are the crash-recovery record: the runner saves
// one after every observable state change, and on startup any snapshot left
// in a non-terminal status marks a task that a restart interrupted.
package store
