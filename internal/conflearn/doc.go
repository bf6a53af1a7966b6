// Package conflearn identifies likely-mislabeled rows from out-of-sample
// class probabilities using self-confidence ranking with per-class confident
// thresholds.
package conflearn
