package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/papapumpkin/loadstar/internal/model"
)

// LogConfig controls the zap logger.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Config holds all runtime configuration for a loadstar invocation.
// Values are populated from .loadstar.yaml, LOADSTAR_* env vars, and CLI flags.
type Config struct {
	Granularity   string        `mapstructure:"granularity"`
	BucketCount   int           `mapstructure:"bucket_count"`
	Workers       int           `mapstructure:"workers"`
	Timeout       time.Duration `mapstructure:"timeout"`
	NearCapacity  float64       `mapstructure:"near_capacity"`
	ArchivePath   string        `mapstructure:"archive_path"`
	TelemetryPath string        `mapstructure:"telemetry_path"`
	Log           LogConfig     `mapstructure:"log"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("granularity", "month")
	viper.SetDefault("bucket_count", 6)
	viper.SetDefault("workers", 4)
	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("near_capacity", 0.85)
	viper.SetDefault("archive_path", "")
	viper.SetDefault("telemetry_path", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.encoding", "console")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if _, err := model.ParseGranularity(c.Granularity); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.BucketCount < 1 {
		return fmt.Errorf("config: bucket_count must be at least 1, got %d", c.BucketCount)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", c.Timeout)
	}
	if c.NearCapacity <= 0 || c.NearCapacity > 1 {
		return fmt.Errorf("config: near_capacity must be in (0, 1], got %g", c.NearCapacity)
	}
	switch c.Log.Encoding {
	case "console", "json":
	default:
		return fmt.Errorf("config: log.encoding must be console or json, got %q", c.Log.Encoding)
	}
	return nil
}

// GranularityValue returns the parsed bucket granularity. It assumes the
// config has been validated.
func (c Config) GranularityValue() model.Granularity {
	g, _ := model.ParseGranularity(c.Granularity)
	return g
}
