package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"relabel/internal/config"
	"relabel/internal/logging"
	"relabel/internal/runstore"
	"relabel/internal/services"
)

// Flow sequences the pipeline steps over one run: it persists a state
// snapshot after every completed step and marks the run failed (with the
// failing step recorded) on the first error.
type Flow struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *runstore.Store
	rng    *rand.Rand
}

// New constructs a flow. The store must stay open for the flow's lifetime.
func New(cfg *config.Config, logger *slog.Logger, store *runstore.Store) *Flow {
	return &Flow{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		store:  store,
	}
}

// seedRNG fixes the flow's random source. Called exactly once per process,
// before any stage that consumes randomness.
func (f *Flow) seedRNG(seed int64) {
	f.rng = rand.New(rand.NewSource(seed))
}

// Run executes every step for a fresh run and returns its identifier. The
// identifier is valid even when an error is returned, so the operator can
// resume the failed run.
func (f *Flow) Run(ctx context.Context) (string, error) {
	unlock, err := f.acquireLock()
	if err != nil {
		return "", err
	}
	defer unlock()

	runID := uuid.NewString()
	run, err := f.store.NewRun(ctx, runID)
	if err != nil {
		return "", err
	}

	f.logger.Info("run started", logging.String(logging.FieldRunID, runID))
	return runID, f.execute(ctx, run, &State{}, 0)
}

// Resume continues a failed run from the step after its last persisted
// snapshot. Completed steps are never re-run.
func (f *Flow) Resume(ctx context.Context, runID string) error {
	unlock, err := f.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	run, err := f.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status == runstore.StatusCompleted {
		return services.Wrap(services.ErrValidation, "pipeline", "resume",
			fmt.Sprintf("run %s already completed", runID), nil)
	}

	snapshot, err := f.store.LatestSnapshot(ctx, runID)
	if err != nil {
		return err
	}
	state, err := UnmarshalState(snapshot.Payload)
	if err != nil {
		return err
	}

	steps := Steps()
	next := snapshot.Seq + 1
	if next >= len(steps) {
		return services.Wrap(services.ErrValidation, "pipeline", "resume",
			fmt.Sprintf("run %s has no remaining steps", runID), nil)
	}

	// The seed was fixed by the start step; rebuild the random source from it
	// so resumed stages stay reproducible in isolation.
	f.seedRNG(state.Seed)

	run.Status = runstore.StatusRunning
	run.ErrorMessage = ""
	if err := f.store.UpdateRun(ctx, run); err != nil {
		return err
	}

	f.logger.Info("run resumed",
		logging.String(logging.FieldRunID, runID),
		logging.String("from_step", steps[next].Name),
	)
	return f.execute(ctx, run, state, next)
}

func (f *Flow) execute(ctx context.Context, run *runstore.Run, state *State, startIdx int) error {
	steps := Steps()
	runLogger := f.logger.With(logging.String(logging.FieldRunID, run.ID))

	for idx := startIdx; idx < len(steps); idx++ {
		step := steps[idx]
		stepLogger := runLogger.With(logging.String(logging.FieldStep, step.Name))

		run.CurrentStep = step.Name
		if err := f.store.UpdateRun(ctx, run); err != nil {
			return err
		}

		stepStart := time.Now()
		stepLogger.Info("step started", logging.String(logging.FieldEventType, "step_start"))

		// Each step works on its own snapshot copy; only a successful step's
		// output is carried forward and persisted.
		next := state.Clone()
		if err := step.run(ctx, f, next); err != nil {
			return f.failRun(ctx, run, step.Name, stepLogger, err)
		}
		state = next

		payload, err := state.Marshal()
		if err != nil {
			return f.failRun(ctx, run, step.Name, stepLogger, err)
		}
		if err := f.store.SaveSnapshot(ctx, run.ID, step.Name, idx, payload); err != nil {
			return f.failRun(ctx, run, step.Name, stepLogger, err)
		}

		stepLogger.Info("step completed",
			logging.String(logging.FieldEventType, "step_complete"),
			logging.Duration("step_duration", time.Since(stepStart)),
		)
	}

	run.Status = runstore.StatusCompleted
	run.CurrentStep = ""
	run.ErrorMessage = ""
	if err := f.store.UpdateRun(ctx, run); err != nil {
		return err
	}
	runLogger.Info("run completed")
	return nil
}

func (f *Flow) failRun(ctx context.Context, run *runstore.Run, stepName string, logger *slog.Logger, stepErr error) error {
	logger.Error("step failed",
		logging.String(logging.FieldEventType, "step_failed"),
		logging.Error(stepErr),
	)
	run.Status = runstore.StatusFailed
	run.CurrentStep = stepName
	run.ErrorMessage = services.Details(stepErr)
	if updateErr := f.store.UpdateRun(ctx, run); updateErr != nil {
		logger.Error("failed to persist run failure", logging.Error(updateErr))
	}
	return fmt.Errorf("step %s: %w", stepName, stepErr)
}

// acquireLock takes the workspace file lock so two pipeline processes cannot
// share the run database working state.
func (f *Flow) acquireLock() (func(), error) {
	lock := flock.New(filepath.Join(f.cfg.Paths.LogDir, "relabel.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "lock",
			"another pipeline run is active in this workspace", nil)
	}
	return func() { _ = lock.Unlock() }, nil
}
