package testsupport

import (
	"path/filepath"
	"testing"

	"relabel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults to a small, fast training budget and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.CheckpointDir = filepath.Join(base, "checkpoints")
	cfg.Paths.ReviewDir = filepath.Join(base, "review")
	cfg.Train.Seed = 42
	cfg.Train.KFold = 3
	cfg.Train.Optimizer.BatchSize = 4
	cfg.Train.Optimizer.MaxEpochs = 5
	cfg.Train.Optimizer.LearningRate = 0.5

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithSeed overrides the run seed on the test config.
func WithSeed(seed int64) ConfigOption {
	return func(c *config.Config) {
		c.Train.Seed = seed
	}
}

// WithKFold overrides the fold count on the test config.
func WithKFold(k int) ConfigOption {
	return func(c *config.Config) {
		c.Train.KFold = k
	}
}

// WithMaxEpochs overrides the epoch budget on the test config.
func WithMaxEpochs(epochs int) ConfigOption {
	return func(c *config.Config) {
		c.Train.Optimizer.MaxEpochs = epochs
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
