package config

import (
	"fmt"
	"slices"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-intake.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// ProfilesPath points at a YAML or TOML entity profile document.
	// Empty means the embedded default profiles.
	ProfilesPath string `yaml:"profiles_path" env:"PROFILES_PATH" env-default:""`

	// Engine thresholds
	Engine EngineConfig `yaml:"engine"`
}

// EngineConfig holds the tunable thresholds of the intake engine. The
// defaults reproduce the behavior the heuristics were calibrated with.
type EngineConfig struct {
	// ClassificationCutoff is the confidence at or below which a table is
	// classified as unknown.
	ClassificationCutoff float64 `yaml:"classification_cutoff" env:"CLASSIFICATION_CUTOFF" env-default:"0.4"`

	// MappingAcceptance is the score a (header, field) pair must exceed to be
	// assigned by the header mapper.
	MappingAcceptance float64 `yaml:"mapping_acceptance" env:"MAPPING_ACCEPTANCE" env-default:"1.0"`

	// IQRMultiplier scales the interquartile range for outlier fences.
	IQRMultiplier float64 `yaml:"iqr_multiplier" env:"IQR_MULTIPLIER" env-default:"1.5"`

	// RequiredNullRate is the empty-cell rate below which a column is
	// treated as required.
	RequiredNullRate float64 `yaml:"required_null_rate" env:"REQUIRED_NULL_RATE" env-default:"0.10"`

	// SampleRows is how many leading rows the classifier inspects.
	SampleRows int `yaml:"sample_rows" env:"SAMPLE_ROWS" env-default:"5"`

	// MaxConcurrentTables bounds per-table pipeline parallelism.
	MaxConcurrentTables int `yaml:"max_concurrent_tables" env:"MAX_CONCURRENT_TABLES" env-default:"4"`

	// CheckSuspiciousContent enables the SQL injection / XSS cell scan.
	CheckSuspiciousContent bool `yaml:"check_suspicious_content" env:"CHECK_SUSPICIOUS_CONTENT" env-default:"true"`
}

// ValidLogLevels contains the accepted LOG_LEVEL values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultEngineConfig returns the calibrated engine thresholds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ClassificationCutoff:   0.4,
		MappingAcceptance:      1.0,
		IQRMultiplier:          1.5,
		RequiredNullRate:       0.10,
		SampleRows:             5,
		MaxConcurrentTables:    4,
		CheckSuspiciousContent: true,
	}
}

// Default returns the configuration used when nothing is read from disk or
// the environment. Library callers and tests start from here.
func Default() *Config {
	return &Config{
		Env:      "local",
		LogLevel: "info",
		Version:  "dev",
		Engine:   DefaultEngineConfig(),
	}
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile reads configuration from the given YAML file with environment
// variable overrides.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadEnv reads configuration from environment variables only.
func LoadEnv(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that every threshold is usable.
func (c *Config) Validate() error {
	if !slices.Contains(ValidLogLevels, c.LogLevel) {
		return fmt.Errorf("log_level must be one of %v, got %q", ValidLogLevels, c.LogLevel)
	}
	return c.Engine.Validate()
}

// Validate checks that every threshold is usable.
func (e *EngineConfig) Validate() error {
	if e.ClassificationCutoff < 0 || e.ClassificationCutoff > 1 {
		return fmt.Errorf("classification_cutoff must be within [0,1], got %v", e.ClassificationCutoff)
	}
	if e.MappingAcceptance < 0 {
		return fmt.Errorf("mapping_acceptance must not be negative, got %v", e.MappingAcceptance)
	}
	if e.IQRMultiplier <= 0 {
		return fmt.Errorf("iqr_multiplier must be positive, got %v", e.IQRMultiplier)
	}
	if e.RequiredNullRate <= 0 || e.RequiredNullRate > 1 {
		return fmt.Errorf("required_null_rate must be within (0,1], got %v", e.RequiredNullRate)
	}
	if e.SampleRows < 0 {
		return fmt.Errorf("sample_rows must not be negative, got %d", e.SampleRows)
	}
	if e.MaxConcurrentTables < 1 {
		return fmt.Errorf("max_concurrent_tables must be at least 1, got %d", e.MaxConcurrentTables)
	}
	return nil
}
