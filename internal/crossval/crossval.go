package crossval

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"relabel/internal/classifier"
	"relabel/internal/config"
	"relabel/internal/dataset"
	"relabel/internal/logging"
	"relabel/internal/services"
	"relabel/internal/trainer"
)

// Run fills every row of the combined dataset with an out-of-sample
// probability estimate: for each fold a freshly-initialized classifier is
// trained on the other k-1 folds for the full epoch budget and then predicts
// the held-out fold. Any fold failure aborts the whole stage.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, rng *rand.Rand, combined *dataset.Dataset) error {
	log := logging.NewComponentLogger(logger, "crossval")
	n := combined.Len()

	folds, err := KFold(n, cfg.Train.KFold)
	if err != nil {
		return err
	}

	for f, testIdx := range folds {
		trainIdx := Complement(n, testIdx)

		trainSet, err := combined.Subset(trainIdx)
		if err != nil {
			return err
		}
		testSet, err := combined.Subset(testIdx)
		if err != nil {
			return err
		}

		sys := classifier.NewSystem(combined.Dim())
		tr := trainer.New(cfg, logger, rng)
		if _, err := tr.Fit(ctx, sys, trainSet, nil); err != nil {
			return services.Wrap(services.ErrTraining, "crossval", fmt.Sprintf("fold %d", f), "fit failed", err)
		}

		probs, err := tr.Predict(ctx, sys, testSet)
		if err != nil {
			return services.Wrap(services.ErrTraining, "crossval", fmt.Sprintf("fold %d", f), "predict failed", err)
		}

		for j, idx := range testIdx {
			combined.Rows[idx].Prob = probs[j]
		}

		log.Info("fold complete",
			logging.Int("fold", f),
			logging.Int("train_rows", len(trainIdx)),
			logging.Int("test_rows", len(testIdx)),
		)
	}

	// Every index must have been written exactly once.
	for i, row := range combined.Rows {
		if row.Prob == dataset.ProbUnset {
			return services.Wrap(services.ErrDataShape, "crossval", "postcondition",
				fmt.Sprintf("row %d left without an out-of-sample probability", i), nil)
		}
	}
	return nil
}
