// Package config loads service settings from a YAML file, an optional .env file and
// ATTRITION_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"time"

	"attrition/logger"
	"attrition/ml"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ATTRITION_"

type Config struct {
	HTTP    HTTPConfig    `yaml:"http" envPrefix:"HTTP_"`
	Model   ModelConfig   `yaml:"model" envPrefix:"MODEL_"`
	Dataset DatasetConfig `yaml:"dataset" envPrefix:"DATASET_"`
	History HistoryConfig `yaml:"history" envPrefix:"HISTORY_"`
	Log     logger.Config `yaml:"log" envPrefix:"LOG_"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port" env:"PORT"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	// MaxUploadMB caps request bodies, including dataset uploads.
	MaxUploadMB int64 `yaml:"max_upload_mb" env:"MAX_UPLOAD_MB"`
}

type ModelConfig struct {
	Type string `yaml:"type" env:"TYPE"`
	Path string `yaml:"path" env:"PATH"`
}

type DatasetConfig struct {
	// Require makes predictions wait for an uploaded dataset.
	Require   bool `yaml:"require" env:"REQUIRE"`
	CacheSize int  `yaml:"cache_size" env:"CACHE_SIZE"`
}

type HistoryConfig struct {
	// Path of the sqlite file; empty disables history.
	Path string `yaml:"path" env:"PATH"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:           8080,
			Timeout:        30 * time.Second,
			AllowedOrigins: []string{"*"},
			MaxUploadMB:    50,
		},
		Model: ModelConfig{
			Type: ml.ModelTypeLightGBM,
			Path: "models/attrition_lgbm.json",
		},
		Dataset: DatasetConfig{
			Require:   true,
			CacheSize: 16,
		},
		Log: logger.Config{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadDotEnv exports variables from the given files. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Load starts from Default, applies the YAML file at path (skipped when path is empty)
// and then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: http.port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("config: http.timeout must be positive")
	}
	if c.HTTP.MaxUploadMB <= 0 {
		return errors.New("config: http.max_upload_mb must be positive")
	}
	if !slices.Contains(ml.SupportedModelTypes(), c.Model.Type) {
		return fmt.Errorf("config: model.type %q is not one of %v", c.Model.Type, ml.SupportedModelTypes())
	}
	if c.Model.Path == "" {
		return errors.New("config: model.path is required")
	}
	if c.Dataset.CacheSize <= 0 {
		return errors.New("config: dataset.cache_size must be positive")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// MaxUploadBytes returns the request body limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.HTTP.MaxUploadMB << 20
}
