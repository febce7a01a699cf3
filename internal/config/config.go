// Package config holds the defaults and the YAML configuration file of the
// JIT control plane.
//
// A configuration file looks like:
//
//	jit:
//	  threshold: 3
//	  compress_limit: 30
//	  unit_capacity: 256
//	  trace_limit: 64
//	log:
//	  level: debug
//	  format: json
//	journal:
//	  driver: sqlite
//	  path: jit-events.db
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level portaljit.yaml configuration.
type Config struct {
	JIT     JITConfig     `yaml:"jit"`
	Log     LogConfig     `yaml:"log"`
	Journal JournalConfig `yaml:"journal"`
}

// JITConfig tunes the reference warm-up oracle and the dependency registry.
type JITConfig struct {
	// Disabled turns compilation off; every portal runs interpreted.
	Disabled bool `yaml:"disabled,omitempty"`

	// Threshold is the number of merge-point visits per green key before a
	// trace is recorded. Zero means "use the default"; 1 compiles on the
	// first visit.
	Threshold int `yaml:"threshold,omitempty"`

	// CompressLimit is the initial dependent-list limit of every monitor.
	CompressLimit int `yaml:"compress_limit,omitempty"`

	// UnitCapacity is the maximum number of live compiled units.
	UnitCapacity int `yaml:"unit_capacity,omitempty"`

	// TraceLimit bounds the number of iterations one recorded trace may span.
	TraceLimit int `yaml:"trace_limit,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is text or json.
	Format string `yaml:"format,omitempty"`
}

// JournalConfig enables the persistent event journal.
type JournalConfig struct {
	// Driver is sqlite, mysql or postgres.
	Driver string `yaml:"driver,omitempty"`

	// Path is the SQLite database file, or the data source name for the
	// other drivers. Empty keeps events in memory only.
	Path string `yaml:"path,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a portaljit.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses portaljit.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for portaljit.yaml starting from dir and walking up
// to parent directories. Returns "" and nil error if nothing is found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Validate checks a configuration assembled in code or adjusted after
// loading, such as by command-line flags.
func (c *Config) Validate() error {
	return c.validate("config")
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if c.JIT.Threshold < 0 {
		return fmt.Errorf("%s: jit.threshold must not be negative, got %d", path, c.JIT.Threshold)
	}
	if c.JIT.CompressLimit < 0 {
		return fmt.Errorf("%s: jit.compress_limit must not be negative, got %d", path, c.JIT.CompressLimit)
	}
	if c.JIT.UnitCapacity < 0 {
		return fmt.Errorf("%s: jit.unit_capacity must not be negative, got %d", path, c.JIT.UnitCapacity)
	}
	if c.JIT.TraceLimit < 0 {
		return fmt.Errorf("%s: jit.trace_limit must not be negative, got %d", path, c.JIT.TraceLimit)
	}
	if c.Log.Level != "" {
		if _, err := parseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("%s: log.level: %w", path, err)
		}
	}
	switch c.Journal.Driver {
	case "", "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("%s: journal.driver must be sqlite, mysql or postgres, got %q", path, c.Journal.Driver)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%s: log.format must be text or json, got %q", path, c.Log.Format)
	}
	return nil
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	if c.JIT.Threshold == 0 {
		c.JIT.Threshold = DefaultThreshold
	}
	if c.JIT.CompressLimit == 0 {
		c.JIT.CompressLimit = DefaultCompressLimit
	}
	if c.JIT.UnitCapacity == 0 {
		c.JIT.UnitCapacity = DefaultUnitCapacity
	}
	if c.JIT.TraceLimit == 0 {
		c.JIT.TraceLimit = DefaultTraceLimit
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Journal.Driver == "" {
		c.Journal.Driver = DefaultJournalDriver
	}
}

// SlogLevel returns the configured level as a slog.Level.
func (c *LogConfig) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
	return lvl, nil
}
