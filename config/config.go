// Package config loads the YAML configuration of the buffer manager binaries.
package config

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	diskmanager "github.com/sushant-115/bufmgr/core/storage_engine/disk_manager"
	pagemanager "github.com/sushant-115/bufmgr/core/storage_engine/page_manager"
	"github.com/sushant-115/bufmgr/pkg/logger"
	"github.com/sushant-115/bufmgr/pkg/telemetry"
)

// BufferPoolConfig sizes the buffer pool.
type BufferPoolConfig struct {
	NumFrames int `yaml:"num_frames"`
}

// Config is the top level configuration file.
type Config struct {
	// PageSize is shared by the pool and every file it serves.
	PageSize   int                 `yaml:"page_size"`
	DataDir    string              `yaml:"data_dir"`
	BufferPool BufferPoolConfig    `yaml:"buffer_pool"`
	Disk       diskmanager.Options `yaml:"disk"`
	Logger     logger.Config       `yaml:"logger"`
	Telemetry  telemetry.Config    `yaml:"telemetry"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		PageSize: pagemanager.DefaultPageSize,
		DataDir:  "data",
		BufferPool: BufferPoolConfig{
			NumFrames: 64,
		},
		Logger: logger.Config{
			Level:      "info",
			Format:     "console",
			OutputFile: "stderr",
		},
		Telemetry: telemetry.Config{
			ServiceName:      "bufmgr",
			TraceSampleRatio: 1.0,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found in the configuration.
func (c Config) Validate() error {
	var errs error
	if c.PageSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}
	if c.BufferPool.NumFrames <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("buffer_pool.num_frames must be positive, got %d", c.BufferPool.NumFrames))
	}
	if c.Disk.WriteBytesPerSec < 0 {
		errs = multierr.Append(errs, fmt.Errorf("disk.write_bytes_per_sec must not be negative, got %d", c.Disk.WriteBytesPerSec))
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		errs = multierr.Append(errs, errors.New("telemetry.service_name is required when telemetry is enabled"))
	}
	return errs
}
