// Package config loads tracediff settings from defaults, an optional YAML
// file and TRACEDIFF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a comparison run.
type Config struct {
	Loop        LoopConfig   `yaml:"loop"`
	ContextSize int          `yaml:"context_size" validate:"gte=0,lte=1000"`
	MaxCells    int64        `yaml:"max_cells" validate:"gte=1"`
	Dialect     string       `yaml:"dialect" validate:"oneof=auto plain spike"`
	Log         LogConfig    `yaml:"log"`
	Web         WebConfig    `yaml:"web"`
	Report      ReportConfig `yaml:"report"`
}

// LoopConfig holds the loop suppression thresholds.
type LoopConfig struct {
	MinPatternLength int `yaml:"min_pattern_length" validate:"gte=1,lte=30"`
	MinRepetitions   int `yaml:"min_repetitions" validate:"gte=3"`
}

// LogConfig selects the log level and encoder.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// WebConfig configures the HTTP API.
type WebConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// ReportConfig limits the text report. Zero means unlimited.
type ReportConfig struct {
	MaxPatterns int `yaml:"max_patterns" validate:"gte=0"`
	MaxHunks    int `yaml:"max_hunks" validate:"gte=0"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Loop: LoopConfig{
			MinPatternLength: 3,
			MinRepetitions:   20,
		},
		ContextSize: 3,
		MaxCells:    1 << 28,
		Dialect:     "auto",
		Log: LogConfig{
			Level: "info",
		},
		Web: WebConfig{
			Addr: "localhost:8080",
		},
		Report: ReportConfig{
			MaxPatterns: 10,
		},
	}
}

// Load merges defaults, the YAML file at path and the environment, in that
// order, and validates the result. An empty path or a missing file leaves
// the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := loadEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv applies TRACEDIFF_* overrides. Unlike a missing file, a malformed
// number is reported so a typo does not silently fall back to the default.
func loadEnv(cfg *Config) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"TRACEDIFF_MIN_PATTERN_LENGTH", &cfg.Loop.MinPatternLength},
		{"TRACEDIFF_MIN_REPETITIONS", &cfg.Loop.MinRepetitions},
		{"TRACEDIFF_CONTEXT_SIZE", &cfg.ContextSize},
		{"TRACEDIFF_REPORT_MAX_PATTERNS", &cfg.Report.MaxPatterns},
		{"TRACEDIFF_REPORT_MAX_HUNKS", &cfg.Report.MaxHunks},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("TRACEDIFF_MAX_CELLS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TRACEDIFF_MAX_CELLS: %w", err)
		}
		cfg.MaxCells = n
	}
	if v := os.Getenv("TRACEDIFF_DIALECT"); v != "" {
		cfg.Dialect = strings.ToLower(v)
	}
	if v := os.Getenv("TRACEDIFF_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("TRACEDIFF_LOG_JSON"); v != "" {
		cfg.Log.JSON = v == "true" || v == "1"
	}
	if v := os.Getenv("TRACEDIFF_WEB_ADDR"); v != "" {
		cfg.Web.Addr = v
	}
	return nil
}

var validate = validator.New()

// Validate checks the struct tags on every section.
func (c Config) Validate() error {
	return validate.Struct(c)
}
