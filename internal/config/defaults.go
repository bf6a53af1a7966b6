package config

const (
	defaultDataDir       = "~/.local/share/relabel/data"
	defaultLogDir        = "~/.local/share/relabel/logs"
	defaultCheckpointDir = "~/.local/share/relabel/checkpoints"
	defaultReviewDir     = "~/.local/share/relabel/review"
	defaultSeed          = 42
	defaultKFold         = 3
	defaultBatchSize     = 32
	defaultMaxEpochs     = 10
	defaultLearningRate  = 0.05
	defaultLogFormat     = "auto"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			LogDir:        defaultLogDir,
			CheckpointDir: defaultCheckpointDir,
			ReviewDir:     defaultReviewDir,
		},
		Train: Train{
			Seed:  defaultSeed,
			KFold: defaultKFold,
			Optimizer: Optimizer{
				BatchSize:    defaultBatchSize,
				MaxEpochs:    defaultMaxEpochs,
				LearningRate: defaultLearningRate,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
