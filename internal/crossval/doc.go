// Package crossval produces the out-of-sample probability estimates that
// confidence learning needs: k-fold partitioning, per-fold training on the
// remaining folds, and scatter of held-out predictions by row index.
package crossval
