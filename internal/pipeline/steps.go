package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"relabel/internal/classifier"
	"relabel/internal/conflearn"
	"relabel/internal/crossval"
	"relabel/internal/dataset"
	"relabel/internal/logging"
	"relabel/internal/review"
	"relabel/internal/services"
	"relabel/internal/trainer"
)

// Step is one node of the linear pipeline. Steps execute strictly in order;
// each completes fully (and has its state snapshot persisted) before the next
// begins.
type Step struct {
	Name        string
	Description string
	run         func(ctx context.Context, f *Flow, state *State) error
}

// Steps returns the ordered pipeline step graph.
func Steps() []Step {
	return []Step{
		{
			Name:        "start",
			Description: "Fix the run seed for reproducible shuffling and fold assignment",
			run:         stepStart,
		},
		{
			Name:        "init_system",
			Description: "Load train/dev/test review splits with embeddings and labels",
			run:         stepInitSystem,
		},
		{
			Name:        "train_test",
			Description: "Train the sentiment classifier and record baseline test metrics",
			run:         stepTrainTest,
		},
		{
			Name:        "crossval",
			Description: "Compute out-of-sample probabilities for every row via k-fold training",
			run:         stepCrossval,
		},
		{
			Name:        "inspect",
			Description: "Rank likely-mislabeled rows by self-confidence and correct their labels",
			run:         stepInspect,
		},
		{
			Name:        "review",
			Description: "Export flagged rows as Label Studio pre-annotations",
			run:         stepReview,
		},
		{
			Name:        "retrain_retest",
			Description: "Retrain from scratch on corrected labels and record test metrics",
			run:         stepRetrainRetest,
		},
		{
			Name:        "end",
			Description: "Report the pre/post metric comparison",
			run:         stepEnd,
		},
	}
}

// StepNames returns the ordered step names.
func StepNames() []string {
	steps := Steps()
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.Name
	}
	return names
}

func stepStart(_ context.Context, f *Flow, state *State) error {
	state.Seed = f.cfg.Train.Seed
	f.seedRNG(state.Seed)
	f.logger.Info("run seeded", logging.Int64("seed", state.Seed))
	return nil
}

func stepInitSystem(_ context.Context, f *Flow, state *State) error {
	splits, err := dataset.Load(f.cfg.Paths.DataDir)
	if err != nil {
		return err
	}
	state.Splits = splits
	f.logger.Info("datasets loaded",
		logging.Int("train_rows", splits.Train.Len()),
		logging.Int("dev_rows", splits.Dev.Len()),
		logging.Int("test_rows", splits.Test.Len()),
		logging.Int("embedding_dim", splits.Train.Dim()),
	)
	return nil
}

func stepTrainTest(ctx context.Context, f *Flow, state *State) error {
	sys := classifier.NewSystem(state.Splits.Train.Dim())
	tr := trainer.New(f.cfg, f.logger, f.rng)

	checkpoint, err := tr.Fit(ctx, sys, state.Splits.Train, state.Splits.Dev)
	if err != nil {
		return err
	}
	if err := tr.Test(ctx, sys, state.Splits.Test, checkpoint); err != nil {
		return err
	}

	state.CheckpointPath = checkpoint
	results := sys.TestResults
	state.PreResults = &results

	path := filepath.Join(f.cfg.Paths.LogDir, "pre-results.json")
	if err := writeJSON(path, results); err != nil {
		return err
	}
	f.logger.Info("baseline metrics recorded",
		logging.Float64("loss", results.Loss),
		logging.Float64("accuracy", results.Accuracy),
		logging.String("artifact", path),
	)
	return nil
}

func stepCrossval(ctx context.Context, f *Flow, state *State) error {
	combined, err := dataset.Concat(state.Splits.Train, state.Splits.Dev, state.Splits.Test)
	if err != nil {
		return err
	}
	if err := crossval.Run(ctx, f.cfg, f.logger, f.rng, combined); err != nil {
		return err
	}

	path := filepath.Join(f.cfg.Paths.DataDir, "prob.csv")
	if err := dataset.SaveProbCSV(path, combined); err != nil {
		return err
	}

	state.Combined = combined
	f.logger.Info("out-of-sample probabilities computed",
		logging.Int("rows", combined.Len()),
		logging.String("artifact", path),
	)
	return nil
}

func stepInspect(_ context.Context, f *Flow, state *State) error {
	labels := state.Combined.Labels()
	probs := conflearn.ProbMatrix(state.Combined.Probs())

	issues, err := conflearn.FindLabelIssues(labels, probs)
	if err != nil {
		return err
	}
	if err := conflearn.FlipLabels(state.Combined, issues); err != nil {
		return err
	}

	state.Issues = issues
	f.logger.Info("label issues found", logging.Int("count", len(issues)))
	return nil
}

func stepReview(_ context.Context, f *Flow, state *State) error {
	records, err := review.Records(state.Combined, state.Issues)
	if err != nil {
		return err
	}
	path, err := review.Write(f.cfg.Paths.ReviewDir, records)
	if err != nil {
		return err
	}
	state.ReviewPath = path
	f.logger.Info("pre-annotations exported",
		logging.Int("records", len(records)),
		logging.String("artifact", path),
	)
	return nil
}

func stepRetrainRetest(ctx context.Context, f *Flow, state *State) error {
	trainLen := state.Splits.Train.Len()
	devLen := state.Splits.Dev.Len()
	total := state.Combined.Len()
	if trainLen+devLen > total {
		return services.Wrap(services.ErrDataShape, "retrain_retest", "split",
			fmt.Sprintf("combined has %d rows, splits claim %d", total, trainLen+devLen), nil)
	}

	trainSet, err := state.Combined.Subset(indexRange(0, trainLen))
	if err != nil {
		return err
	}
	devSet, err := state.Combined.Subset(indexRange(trainLen, trainLen+devLen))
	if err != nil {
		return err
	}
	testSet, err := state.Combined.Subset(indexRange(trainLen+devLen, total))
	if err != nil {
		return err
	}

	sys := classifier.NewSystem(state.Combined.Dim())
	tr := trainer.New(f.cfg, f.logger, f.rng)

	checkpoint, err := tr.Fit(ctx, sys, trainSet, devSet)
	if err != nil {
		return err
	}
	if err := tr.Test(ctx, sys, testSet, checkpoint); err != nil {
		return err
	}

	results := sys.TestResults
	state.PostResults = &results

	path := filepath.Join(f.cfg.Paths.LogDir, "post-results.json")
	if err := writeJSON(path, results); err != nil {
		return err
	}
	f.logger.Info("post-correction metrics recorded",
		logging.Float64("loss", results.Loss),
		logging.Float64("accuracy", results.Accuracy),
		logging.String("artifact", path),
	)
	return nil
}

func stepEnd(_ context.Context, f *Flow, state *State) error {
	attrs := []logging.Attr{logging.Int("issues", len(state.Issues))}
	if state.PreResults != nil && state.PostResults != nil {
		attrs = append(attrs,
			logging.Float64("pre_accuracy", state.PreResults.Accuracy),
			logging.Float64("post_accuracy", state.PostResults.Accuracy),
		)
	}
	f.logger.Info("pipeline complete", logging.Args(attrs...)...)
	return nil
}

func indexRange(start, end int) []int {
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}
