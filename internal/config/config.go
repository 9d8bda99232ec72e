// Package config loads simulator settings from YAML with environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/office-diffusion/internal/engine"
)

// Config is the full set of settings for one officesim process.
type Config struct {
	Label    string            `yaml:"label"`
	Office   engine.InitConfig `yaml:"office"`
	Run      engine.RunConfig  `yaml:"run"`
	DBPath   string            `yaml:"db_path"`  // Empty disables persistence
	TickLog  string            `yaml:"tick_log"` // Empty disables the compressed tick log
	Port     int               `yaml:"port"`     // 0 disables the HTTP API
	LogLevel string            `yaml:"log_level"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Label:    "office",
		Office:   engine.DefaultInitConfig(),
		Run:      engine.DefaultRunConfig(),
		DBPath:   "data/officesim.db",
		LogLevel: "info",
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides settings from OFFICESIM_* variables.
func (c *Config) applyEnv() error {
	c.DBPath = envOrDefault("OFFICESIM_DB", c.DBPath)
	c.TickLog = envOrDefault("OFFICESIM_TICKLOG", c.TickLog)
	c.LogLevel = envOrDefault("OFFICESIM_LOG_LEVEL", c.LogLevel)

	var err error
	if c.Port, err = envIntOrDefault("OFFICESIM_PORT", c.Port); err != nil {
		return err
	}
	if c.Run.Ticks, err = envIntOrDefault("OFFICESIM_TICKS", c.Run.Ticks); err != nil {
		return err
	}
	if v := os.Getenv("OFFICESIM_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("OFFICESIM_SEED: %w", err)
		}
		c.Office.Seed = seed
	}
	return nil
}

// Validate checks settings that the engine does not.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Run.Ticks < 0 {
		return fmt.Errorf("ticks must not be negative, got %d", c.Run.Ticks)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
