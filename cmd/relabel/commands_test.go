package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"relabel/internal/pipeline"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestShowListsEveryStep(t *testing.T) {
	output, err := execute(t, "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, name := range pipeline.StepNames() {
		if !strings.Contains(output, name) {
			t.Errorf("show output missing step %q:\n%s", name, output)
		}
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := execute(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Errorf("output does not mention target path:\n%s", output)
	}

	payload, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(payload), "data_dir") {
		t.Error("sample config missing data_dir key")
	}

	// A second init without --overwrite must refuse to clobber the file.
	if _, err := execute(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, err := execute(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	payload := "[paths]\n" +
		"data_dir = \"" + filepath.Join(base, "data") + "\"\n" +
		"log_dir = \"" + filepath.Join(base, "logs") + "\"\n" +
		"checkpoint_dir = \"" + filepath.Join(base, "checkpoints") + "\"\n" +
		"review_dir = \"" + filepath.Join(base, "review") + "\"\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestResumeRequiresRunIDOrLatest(t *testing.T) {
	cfgPath := writeTestConfig(t)

	if _, err := execute(t, "--config", cfgPath, "resume"); err == nil {
		t.Fatal("expected resume without arguments to fail")
	}
	if _, err := execute(t, "--config", cfgPath, "resume", "some-run", "--latest"); err == nil {
		t.Fatal("expected resume with both run id and --latest to fail")
	}
}

func TestResumeLatestWithNoFailedRuns(t *testing.T) {
	cfgPath := writeTestConfig(t)

	if _, err := execute(t, "--config", cfgPath, "resume", "--latest"); err == nil {
		t.Fatal("expected --latest to fail when no run has failed")
	}
}
