package runstore_test

import (
	"context"
	"errors"
	"testing"

	"relabel/internal/runstore"
	"relabel/internal/testsupport"
)

func TestNewRunAndGetRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if run.Status != runstore.StatusRunning {
		t.Fatalf("expected running status, got %s", run.Status)
	}

	fetched, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if fetched.ID != "run-1" || fetched.Status != runstore.StatusRunning {
		t.Fatalf("unexpected run: %+v", fetched)
	}
}

func TestNewRunRequiresID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.NewRun(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestGetRunNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.GetRun(context.Background(), "missing"); !errors.Is(err, runstore.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestUpdateRunPersistsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "run-fail")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	run.Status = runstore.StatusFailed
	run.CurrentStep = "crossval"
	run.ErrorMessage = "fold 1: fit failed"
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	fetched, err := store.GetRun(ctx, "run-fail")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if fetched.Status != runstore.StatusFailed || fetched.CurrentStep != "crossval" {
		t.Fatalf("unexpected run after update: %+v", fetched)
	}
	if !fetched.IsResumable() {
		t.Fatal("failed run with a step should be resumable")
	}
}

func TestSnapshotRoundTripAndLatest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewRun(ctx, "run-snap"); err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}

	if err := store.SaveSnapshot(ctx, "run-snap", "init_system", 1, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := store.SaveSnapshot(ctx, "run-snap", "train_test", 2, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	latest, err := store.LatestSnapshot(ctx, "run-snap")
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if latest.Step != "train_test" || latest.Seq != 2 {
		t.Fatalf("expected train_test snapshot, got %+v", latest)
	}
	if string(latest.Payload) != `{"a":2}` {
		t.Fatalf("unexpected payload %s", latest.Payload)
	}

	// Replacing a snapshot for the same step keeps the primary key unique.
	if err := store.SaveSnapshot(ctx, "run-snap", "train_test", 2, []byte(`{"a":3}`)); err != nil {
		t.Fatalf("SaveSnapshot replace failed: %v", err)
	}
	latest, err = store.LatestSnapshot(ctx, "run-snap")
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if string(latest.Payload) != `{"a":3}` {
		t.Fatalf("expected replaced payload, got %s", latest.Payload)
	}
}

func TestLatestSnapshotMissingRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.LatestSnapshot(context.Background(), "missing"); !errors.Is(err, runstore.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if _, err := store.NewRun(ctx, id); err != nil {
			t.Fatalf("NewRun failed: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
}

func TestMostRecentResumable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.MostRecentResumable(ctx); !errors.Is(err, runstore.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound with no failed runs, got %v", err)
	}

	ok, err := store.NewRun(ctx, "run-ok")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	ok.Status = runstore.StatusCompleted
	if err := store.UpdateRun(ctx, ok); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	failed, err := store.NewRun(ctx, "run-broken")
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	failed.Status = runstore.StatusFailed
	failed.CurrentStep = "inspect"
	if err := store.UpdateRun(ctx, failed); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	resumable, err := store.MostRecentResumable(ctx)
	if err != nil {
		t.Fatalf("MostRecentResumable failed: %v", err)
	}
	if resumable.ID != "run-broken" {
		t.Fatalf("expected run-broken, got %s", resumable.ID)
	}
}
