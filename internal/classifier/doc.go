// Package classifier implements the logistic-regression sentiment model the
// trainer drives. The model operates on precomputed review embeddings and
// exposes fit-support primitives (forward, loss, gradients) plus evaluation.
package classifier
