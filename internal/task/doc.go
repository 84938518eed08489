// Package task manages the population of agent tasks in a running service:
// the Registry tracks live tasks and validates control-signal transitions,
// and the Runner drives queued tasks through a bounded worker pool while
// persisting snapshots for crash recovery.
package task
