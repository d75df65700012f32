package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix namespaces the environment variables, e.g.
// BULKRUN_PIPELINE_INPUT_DIR maps to pipeline.input_dir.
const envPrefix = "BULKRUN"

// settings lists every known configuration key so environment-only
// values are picked up by Unmarshal even without defaults.
var settings = []string{
	"pipeline.input_dir",
	"pipeline.output_dir",
	"pipeline.processor",
	"pipeline.task",
	"pipeline.source_name",
	"pipeline.dry_run",
	"pipeline.skip_invalid",
	"pipeline.enqueue_interval",
	"pipeline.poll_interval",
	"api.key",
	"api.base_url",
	"api.timeout",
	"store.driver",
	"store.database_url",
	"status.addr",
	"log.level",
}

// Load configuration from environment variables and optionally a
// bulkrun.yaml config file in the working directory. Environment
// variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation
// fails.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("pipeline.task", "product-match")
	v.SetDefault("pipeline.source_name", "Wayfair")
	v.SetDefault("pipeline.enqueue_interval", "5s")
	v.SetDefault("pipeline.poll_interval", "60s")
	v.SetDefault("api.base_url", "https://api.parallel.ai")
	v.SetDefault("api.timeout", "60s")
	v.SetDefault("store.driver", "fs")
	v.SetDefault("log.level", "info")

	v.SetConfigName("bulkrun")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range settings {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
