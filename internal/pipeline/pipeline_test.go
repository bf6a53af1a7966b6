package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"relabel/internal/config"
	"relabel/internal/dataset"
	"relabel/internal/logging"
	"relabel/internal/pipeline"
	"relabel/internal/runstore"
	"relabel/internal/testsupport"
)

func writeToySplits(t *testing.T, cfg *config.Config) {
	t.Helper()
	testsupport.WriteSplits(t, cfg.Paths.DataDir, &dataset.Splits{
		Train: testsupport.ToyDataset(12),
		Dev:   testsupport.ToyDataset(4),
		Test:  testsupport.ToyDataset(4),
	})
}

func TestStepOrdering(t *testing.T) {
	want := []string{
		"start", "init_system", "train_test", "crossval",
		"inspect", "review", "retrain_retest", "end",
	}
	got := pipeline.StepNames()
	if len(got) != len(want) {
		t.Fatalf("StepNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunCompletesAndPersistsArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeToySplits(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	flow := pipeline.New(cfg, logging.NewNop(), store)

	runID, err := flow.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	run, err := store.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != runstore.StatusCompleted {
		t.Errorf("status = %q, want %q", run.Status, runstore.StatusCompleted)
	}
	if run.CurrentStep != "" {
		t.Errorf("current step = %q, want empty after completion", run.CurrentStep)
	}

	for _, artifact := range []string{
		filepath.Join(cfg.Paths.LogDir, "pre-results.json"),
		filepath.Join(cfg.Paths.LogDir, "post-results.json"),
		filepath.Join(cfg.Paths.DataDir, "prob.csv"),
		filepath.Join(cfg.Paths.ReviewDir, "pre-annotations.json"),
	} {
		if _, statErr := os.Stat(artifact); statErr != nil {
			t.Errorf("expected artifact %s: %v", artifact, statErr)
		}
	}

	snap, err := store.LatestSnapshot(context.Background(), runID)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap.Step != "end" {
		t.Errorf("latest snapshot step = %q, want end", snap.Step)
	}
	if snap.Seq != len(pipeline.StepNames())-1 {
		t.Errorf("latest snapshot seq = %d, want %d", snap.Seq, len(pipeline.StepNames())-1)
	}

	state, err := pipeline.UnmarshalState(snap.Payload)
	if err != nil {
		t.Fatalf("UnmarshalState: %v", err)
	}
	if state.Seed != cfg.Train.Seed {
		t.Errorf("state seed = %d, want %d", state.Seed, cfg.Train.Seed)
	}
	if state.PreResults == nil || state.PostResults == nil {
		t.Fatal("expected both pre and post results in final state")
	}
	if state.Combined == nil || state.Combined.Len() != 20 {
		t.Fatalf("expected 20-row combined dataset in final state")
	}
	for i, row := range state.Combined.Rows {
		if row.Prob == dataset.ProbUnset {
			t.Fatalf("row %d still has unset probability", i)
		}
	}
}

func TestRunFailureRecordsStep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// No splits written, so init_system must fail on the missing data files.
	store := testsupport.MustOpenStore(t, cfg)
	flow := pipeline.New(cfg, logging.NewNop(), store)

	runID, err := flow.Run(context.Background())
	if err == nil {
		t.Fatal("expected Run to fail without data files")
	}
	if !strings.Contains(err.Error(), "init_system") {
		t.Errorf("error %q does not name the failed step", err)
	}

	run, getErr := store.GetRun(context.Background(), runID)
	if getErr != nil {
		t.Fatalf("GetRun: %v", getErr)
	}
	if run.Status != runstore.StatusFailed {
		t.Errorf("status = %q, want %q", run.Status, runstore.StatusFailed)
	}
	if run.CurrentStep != "init_system" {
		t.Errorf("current step = %q, want init_system", run.CurrentStep)
	}
	if run.ErrorMessage == "" {
		t.Error("expected a recorded error message")
	}
}

func TestResumeContinuesAfterLastSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	flow := pipeline.New(cfg, logging.NewNop(), store)

	// First attempt fails at init_system; the start snapshot survives.
	runID, err := flow.Run(context.Background())
	if err == nil {
		t.Fatal("expected first Run to fail without data files")
	}
	snap, err := store.LatestSnapshot(context.Background(), runID)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if snap.Step != "start" {
		t.Fatalf("latest snapshot step = %q, want start", snap.Step)
	}

	writeToySplits(t, cfg)
	if err := flow.Resume(context.Background(), runID); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	run, err := store.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != runstore.StatusCompleted {
		t.Errorf("status after resume = %q, want %q", run.Status, runstore.StatusCompleted)
	}
}

func TestResumeRejectsCompletedRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeToySplits(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	flow := pipeline.New(cfg, logging.NewNop(), store)

	runID, err := flow.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := flow.Resume(context.Background(), runID); err == nil {
		t.Fatal("expected Resume of a completed run to fail")
	}
}

func TestResumeUnknownRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	flow := pipeline.New(cfg, logging.NewNop(), store)

	err := flow.Resume(context.Background(), "no-such-run")
	if !errors.Is(err, runstore.ErrRunNotFound) {
		t.Fatalf("error = %v, want ErrRunNotFound", err)
	}
}

func TestStateCloneIsIndependent(t *testing.T) {
	original := &pipeline.State{
		Seed:     7,
		Combined: testsupport.ToyDataset(4),
		Issues:   []int{2, 0},
	}

	clone := original.Clone()
	clone.Seed = 99
	clone.Combined.Rows[0].Label = 1 - clone.Combined.Rows[0].Label
	clone.Issues[0] = 3

	if original.Seed != 7 {
		t.Errorf("clone mutation changed original seed: %d", original.Seed)
	}
	if original.Combined.Rows[0].Label != testsupport.ToyDataset(4).Rows[0].Label {
		t.Error("clone mutation changed original dataset row")
	}
	if original.Issues[0] != 2 {
		t.Errorf("clone mutation changed original issues: %v", original.Issues)
	}
}

func TestStateMarshalRoundTrip(t *testing.T) {
	state := &pipeline.State{
		Seed:       42,
		Issues:     []int{4, 1},
		ReviewPath: "/tmp/pre-annotations.json",
		Combined:   testsupport.ToyDataset(2),
	}

	payload, err := state.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !json.Valid(payload) {
		t.Fatal("snapshot payload is not valid JSON")
	}

	decoded, err := pipeline.UnmarshalState(payload)
	if err != nil {
		t.Fatalf("UnmarshalState: %v", err)
	}
	if decoded.Seed != state.Seed || decoded.ReviewPath != state.ReviewPath {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
	if len(decoded.Issues) != 2 || decoded.Issues[0] != 4 || decoded.Issues[1] != 1 {
		t.Errorf("issues round trip mismatch: %v", decoded.Issues)
	}
	if decoded.Combined == nil || decoded.Combined.Len() != 2 {
		t.Error("combined dataset lost in round trip")
	}
}
