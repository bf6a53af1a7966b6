// Command relabel runs the sentiment relabeling pipeline: it trains a
// classifier on review embeddings, finds likely-mislabeled rows by
// cross-validated self-confidence, exports them for human review, and
// retrains on the corrected labels.
package main
