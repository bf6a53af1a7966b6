// Package trainer runs minibatch gradient descent over a classifier system
// and a dataset, with dev-loss-monitored checkpoint selection and pure
// inference support.
package trainer
