package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"relabel/internal/classifier"
	"relabel/internal/config"
	"relabel/internal/dataset"
	"relabel/internal/logging"
	"relabel/internal/services"
)

// Trainer drives gradient-based optimization of a classifier system for a
// fixed epoch budget, checkpointing the weights with the lowest dev loss.
type Trainer struct {
	cfg    *config.Config
	logger *slog.Logger
	rng    *rand.Rand
}

// New constructs a trainer. The rng carries the run's seed; the trainer is the
// only component that consumes randomness during fit.
func New(cfg *config.Config, logger *slog.Logger, rng *rand.Rand) *Trainer {
	return &Trainer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "trainer"),
		rng:    rng,
	}
}

// Fit trains sys on trainSet for the configured number of epochs. When devSet
// is non-nil, dev loss is monitored after each epoch and the best weights are
// checkpointed; the returned path points at that checkpoint (empty when devSet
// is nil).
func (t *Trainer) Fit(ctx context.Context, sys *classifier.System, trainSet, devSet *dataset.Dataset) (string, error) {
	n := trainSet.Len()
	if n == 0 {
		return "", services.Wrap(services.ErrDataShape, "trainer", "fit", "empty training set", nil)
	}

	opt := t.cfg.Train.Optimizer

	var devMatrix *mat.Dense
	var devLabels []int
	if devSet != nil {
		devMatrix = devSet.Matrix()
		devLabels = devSet.Labels()
	}

	bestLoss := math.Inf(1)
	checkpointPath := ""

	for epoch := 1; epoch <= opt.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		perm := t.rng.Perm(n)
		epochLoss := 0.0
		batches := 0
		for start := 0; start < n; start += opt.BatchSize {
			end := start + opt.BatchSize
			if end > n {
				end = n
			}
			batchMatrix, batchLabels := gather(trainSet, perm[start:end])

			loss, gradWeights, gradBias, err := sys.LossAndGrad(batchMatrix, batchLabels)
			if err != nil {
				return "", err
			}
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return "", services.Wrap(services.ErrTraining, "trainer", "fit",
					fmt.Sprintf("non-finite loss at epoch %d", epoch), nil)
			}
			sys.ApplyGradients(gradWeights, gradBias, opt.LearningRate)
			epochLoss += loss
			batches++
		}

		attrs := []logging.Attr{
			logging.Int("epoch", epoch),
			logging.Float64("train_loss", epochLoss/float64(batches)),
		}

		if devSet != nil {
			results, err := sys.Evaluate(devMatrix, devLabels)
			if err != nil {
				return "", err
			}
			attrs = append(attrs, logging.Float64("dev_loss", results.Loss))
			if results.Loss < bestLoss {
				bestLoss = results.Loss
				path, err := t.saveCheckpoint(sys, checkpointPath)
				if err != nil {
					return "", err
				}
				checkpointPath = path
				attrs = append(attrs, logging.String("checkpoint", path))
			}
		}

		t.logger.Debug("epoch complete", logging.Args(attrs...)...)
	}

	return checkpointPath, nil
}

// Test restores the checkpoint when one is provided, evaluates sys on testSet,
// and records the aggregated metrics in sys.TestResults.
func (t *Trainer) Test(ctx context.Context, sys *classifier.System, testSet *dataset.Dataset, checkpointPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if checkpointPath != "" {
		if err := t.restoreCheckpoint(sys, checkpointPath); err != nil {
			return err
		}
	}
	results, err := sys.Evaluate(testSet.Matrix(), testSet.Labels())
	if err != nil {
		return err
	}
	sys.TestResults = results
	t.logger.Info("evaluation complete",
		logging.Float64("loss", results.Loss),
		logging.Float64("accuracy", results.Accuracy),
	)
	return nil
}

// Predict runs pure inference, returning P(label=1) per row.
func (t *Trainer) Predict(ctx context.Context, sys *classifier.System, set *dataset.Dataset) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sys.Forward(set.Matrix()), nil
}

func gather(set *dataset.Dataset, positions []int) (*mat.Dense, []int) {
	dim := set.Dim()
	matrix := mat.NewDense(len(positions), dim, nil)
	labels := make([]int, len(positions))
	for i, pos := range positions {
		matrix.SetRow(i, set.Rows[pos].Embedding)
		labels[i] = set.Rows[pos].Label
	}
	return matrix, labels
}
