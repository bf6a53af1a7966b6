// Package dataset loads the review splits (text, precomputed embeddings,
// binary labels) and provides the index-stable concatenation the
// cross-validation stage scatters results back into.
package dataset
