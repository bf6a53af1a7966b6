package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for pipeline inputs and artifacts.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	CheckpointDir string `toml:"checkpoint_dir"`
	ReviewDir     string `toml:"review_dir"`
}

// Optimizer contains gradient-descent hyperparameters.
type Optimizer struct {
	BatchSize    int     `toml:"batch_size"`
	MaxEpochs    int     `toml:"max_epochs"`
	LearningRate float64 `toml:"learning_rate"`
}

// Train contains training and cross-validation settings.
type Train struct {
	Seed      int64     `toml:"seed"`
	KFold     int       `toml:"kfold"`
	Optimizer Optimizer `toml:"optimizer"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the pipeline.
//
// Configuration sections:
//   - Paths: dataset directory and artifact output directories
//   - Train: seed, fold count, and optimizer hyperparameters
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Train   Train   `toml:"train"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/relabel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("relabel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	fields := []*string{
		&c.Paths.DataDir,
		&c.Paths.LogDir,
		&c.Paths.CheckpointDir,
		&c.Paths.ReviewDir,
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// Validate checks configuration invariants that must hold before any stage runs.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return errors.New("config: data_dir must not be empty")
	}
	if c.Paths.LogDir == "" {
		return errors.New("config: log_dir must not be empty")
	}
	if c.Paths.CheckpointDir == "" {
		return errors.New("config: checkpoint_dir must not be empty")
	}
	if c.Paths.ReviewDir == "" {
		return errors.New("config: review_dir must not be empty")
	}
	if c.Train.KFold < 2 {
		return fmt.Errorf("config: kfold must be at least 2, got %d", c.Train.KFold)
	}
	if c.Train.Optimizer.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive, got %d", c.Train.Optimizer.BatchSize)
	}
	if c.Train.Optimizer.MaxEpochs <= 0 {
		return fmt.Errorf("config: max_epochs must be positive, got %d", c.Train.Optimizer.MaxEpochs)
	}
	if c.Train.Optimizer.LearningRate <= 0 {
		return fmt.Errorf("config: learning_rate must be positive, got %g", c.Train.Optimizer.LearningRate)
	}
	switch c.Logging.Format {
	case "", "console", "json", "auto":
	default:
		return fmt.Errorf("config: unsupported log format %q", c.Logging.Format)
	}
	return nil
}

// EnsureDirectories creates the artifact directories the pipeline writes into.
// DataDir is the caller's input directory and is not created here.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.CheckpointDir, c.Paths.ReviewDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
