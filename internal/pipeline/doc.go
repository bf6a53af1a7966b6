// Package pipeline sequences the train / crossval / inspect / review /
// retrain steps as a linear, resumable state machine with SQLite-persisted
// per-step snapshots.
package pipeline
