package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	API      APIConfig      `mapstructure:"api"      validate:"required"`
	Store    StoreConfig    `mapstructure:"store"    validate:"required"`
	Status   StatusConfig   `mapstructure:"status"`
	Log      LogConfig      `mapstructure:"log"      validate:"required"`
}

// PipelineConfig contains the batch pipeline settings.
type PipelineConfig struct {
	// InputDir is the directory of input CSV files.
	InputDir string `mapstructure:"input_dir" validate:"required"`

	// OutputDir is the root for the runs/ and results/ artifact trees.
	OutputDir string `mapstructure:"output_dir" validate:"required"`

	// Processor selects the remote processor tier for every task.
	Processor string `mapstructure:"processor" validate:"required"`

	// Task selects the registered task builder.
	Task string `mapstructure:"task" validate:"required"`

	// SourceName is the source retailer name referenced by the
	// product-match task schemas.
	SourceName string `mapstructure:"source_name" validate:"required"`

	// DryRun validates inputs and stops before any remote submission.
	DryRun bool `mapstructure:"dry_run"`

	// SkipInvalid marks unparseable files done-but-skipped instead of
	// aborting the whole run.
	SkipInvalid bool `mapstructure:"skip_invalid"`

	// EnqueueInterval is the sleep between submission retry passes.
	EnqueueInterval time.Duration `mapstructure:"enqueue_interval" validate:"required"`

	// PollInterval is the sleep between fetch polling passes.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`
}

// APIConfig contains the remote task API settings.
type APIConfig struct {
	Key     string        `mapstructure:"key"      validate:"required"`
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"required"`
}

// StoreConfig selects and configures the state-store backend.
type StoreConfig struct {
	// Driver is the state-store backend: fs (default) or postgres.
	Driver string `mapstructure:"driver" validate:"required,oneof=fs postgres"`

	// DatabaseURL is the postgres connection string, required when
	// Driver is postgres.
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Driver postgres"`
}

// StatusConfig configures the optional status HTTP server. An empty
// Addr leaves the server off.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig contains the logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}
