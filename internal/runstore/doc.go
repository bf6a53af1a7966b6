// Package runstore persists pipeline runs and their per-step state snapshots
// in SQLite so a failed run can be resumed from its last completed step.
package runstore
