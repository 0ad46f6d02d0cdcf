// Package config handles bpctl.toml configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/bprogram/internal/engine"
)

// FileName is the configuration file bpctl looks for.
const FileName = "bpctl.toml"

// Config represents a bpctl.toml file. Command-line flags override it.
type Config struct {
	Engine Engine `toml:"engine"`
	Store  Store  `toml:"store"`
	Bridge Bridge `toml:"bridge"`
	Log    Log    `toml:"log"`

	// Path is the file the configuration was loaded from (set at load
	// time, empty for defaults).
	Path string `toml:"-"`
}

// Engine configures engines built by bpctl.
type Engine struct {
	Strategy string `toml:"strategy"`
	Seed     int64  `toml:"seed"`
	MaxSteps *int   `toml:"max-steps"` // nil keeps engine.DefaultMaxSteps
}

// Store configures the trace database.
type Store struct {
	Path string `toml:"path"`
}

// Bridge configures the Redis transport.
type Bridge struct {
	Addr    string `toml:"addr"`
	Channel string `toml:"channel"`
	Origin  string `toml:"origin"`
}

// Log configures the CLI logger.
type Log struct {
	Level string `toml:"level"` // debug, info, warn or error
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Engine: Engine{Strategy: engine.StrategyPriority},
		Bridge: Bridge{Addr: "localhost:6379", Channel: "bprogram"},
		Log:    Log{Level: "warn"},
	}
}

// Load parses a configuration file. Keys absent from the file keep their
// defaults; unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	c.Path = path
	return c, nil
}

// FindAndLoad walks up from startDir to find a bpctl.toml file and loads
// it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks values the engine and logger would reject later.
func (c *Config) Validate() error {
	if _, err := engine.ParseStrategy(c.Engine.Strategy, nil); err != nil {
		return fmt.Errorf("engine.strategy: %w", err)
	}
	if c.Engine.Seed < 0 {
		return fmt.Errorf("engine.seed must be non-negative, got %d", c.Engine.Seed)
	}
	if c.Engine.MaxSteps != nil && *c.Engine.MaxSteps < 0 {
		return fmt.Errorf("engine.max-steps must be non-negative, got %d", *c.Engine.MaxSteps)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// EngineOptions returns the engine options the configuration implies.
// The strategy is resolved separately because it needs a random source.
func (c *Config) EngineOptions() []engine.Option {
	if c.Engine.MaxSteps == nil {
		return nil
	}
	return []engine.Option{engine.WithMaxSteps(*c.Engine.MaxSteps)}
}

// SlogLevel converts the configured level name.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelWarn, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown level %q", l.Level)
	}
	return level, nil
}
