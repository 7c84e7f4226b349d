// Package config layers sysglance settings from defaults, an optional YAML
// file, SYSGLANCE_* environment variables, and command-line flags, in that
// order of increasing precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// Config carries runtime options for sysglance.
type Config struct {
	Interval        time.Duration `env:"SYSGLANCE_INTERVAL"`
	HistoryCapacity int           `env:"SYSGLANCE_HISTORY_CAPACITY"`
	Sort            string        `env:"SYSGLANCE_SORT"`
	Descending      bool          `env:"SYSGLANCE_SORT_DESC"`
	Filter          string        `env:"SYSGLANCE_FILTER"`
	EnergySaving    bool          `env:"SYSGLANCE_ENERGY_SAVING"`
	LogFile         string        `env:"SYSGLANCE_LOG_FILE"`
	JSON            bool
	JSONStream      bool
	ExportPath      string
}

// fileConfig is the YAML shape; durations are strings ("2s", "500ms").
type fileConfig struct {
	Interval        string `yaml:"interval"`
	HistoryCapacity *int   `yaml:"history_capacity"`
	Sort            string `yaml:"sort"`
	Descending      *bool  `yaml:"sort_descending"`
	Filter          string `yaml:"filter"`
	EnergySaving    *bool  `yaml:"energy_saving"`
	LogFile         string `yaml:"log_file"`
}

func Default() Config {
	return Config{
		Interval:        time.Second,
		HistoryCapacity: 100,
		Sort:            "cpu",
		Descending:      true,
	}
}

// Path returns the well-known config file location,
// e.g. ~/.config/sysglance/config.yaml. SYSGLANCE_CONFIG overrides it.
func Path() (string, error) {
	if p := os.Getenv("SYSGLANCE_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sysglance", "config.yaml"), nil
}

// Load builds the effective configuration. A missing config file is fine;
// a malformed one is an error.
func Load(args []string) (Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}
	if err := applyFlags(&cfg, args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if fc.Interval != "" {
		d, err := time.ParseDuration(fc.Interval)
		if err != nil {
			return fmt.Errorf("config: %s: interval: %w", path, err)
		}
		cfg.Interval = d
	}
	if fc.HistoryCapacity != nil {
		cfg.HistoryCapacity = *fc.HistoryCapacity
	}
	if fc.Sort != "" {
		cfg.Sort = fc.Sort
	}
	if fc.Descending != nil {
		cfg.Descending = *fc.Descending
	}
	if fc.Filter != "" {
		cfg.Filter = fc.Filter
	}
	if fc.EnergySaving != nil {
		cfg.EnergySaving = *fc.EnergySaving
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	return nil
}

func applyFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("sysglance", flag.ContinueOnError)
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "refresh interval")
	fs.IntVar(&cfg.HistoryCapacity, "history", cfg.HistoryCapacity, "history chart capacity in points")
	fs.StringVar(&cfg.Sort, "sort", cfg.Sort, "sort column: name|cpu|memory|status")
	fs.BoolVar(&cfg.Descending, "desc", cfg.Descending, "sort descending")
	fs.StringVar(&cfg.Filter, "filter", cfg.Filter, "substring filter for process names")
	fs.BoolVar(&cfg.EnergySaving, "energy", cfg.EnergySaving, "start in energy-saving mode (half poll rate)")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "write debug log to this file")
	fs.BoolVar(&cfg.JSON, "json", cfg.JSON, "output one snapshot as JSON and exit")
	fs.BoolVar(&cfg.JSONStream, "json-stream", cfg.JSONStream, "stream NDJSON snapshots until interrupted")
	fs.StringVar(&cfg.ExportPath, "export", cfg.ExportPath, "with -json: write to this path instead of stdout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: flags: %w", err)
	}
	return nil
}

// Validate rejects settings the sampler would refuse anyway, with friendlier
// messages than a late failure.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("config: interval must be positive, got %s", c.Interval)
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("config: history capacity must be positive, got %d", c.HistoryCapacity)
	}
	switch c.Sort {
	case "name", "cpu", "memory", "status":
	default:
		return fmt.Errorf("config: unknown sort column %q", c.Sort)
	}
	return nil
}
