package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds the generator service configuration.
type Config struct {
	Port        int    `json:"port"`
	DataDir     string `json:"data_dir"`
	Definitions string `json:"definitions"` // path to the worldgen YAML
	Seed        int64  `json:"seed"`
	Randomize   bool   `json:"randomize"` // shuffle band order and jitter gaps
	Workers     int    `json:"workers"`
	MaxRadius   int    `json:"max_radius"` // largest request radius in chunks
	LogFile     string `json:"log_file"`   // rotated log file, empty for stdout only
	LogLevel    string `json:"log_level"`
	Preview     int    `json:"preview_scale"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:        8080,
		DataDir:     "data",
		Definitions: "configs/worldgen.yaml",
		Workers:     4,
		MaxRadius:   6,
		LogLevel:    "info",
		Preview:     4,
	}
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["port"] {
		cfg.Port = fromFile.Port
	}
	if !explicitFlags["definitions"] {
		cfg.Definitions = fromFile.Definitions
	}
	if !explicitFlags["seed"] {
		cfg.Seed = fromFile.Seed
	}
	if !explicitFlags["randomize"] {
		cfg.Randomize = fromFile.Randomize
	}
	if !explicitFlags["workers"] {
		cfg.Workers = fromFile.Workers
	}
	if !explicitFlags["max-radius"] {
		cfg.MaxRadius = fromFile.MaxRadius
	}
	if !explicitFlags["log-file"] {
		cfg.LogFile = fromFile.LogFile
	}
	if !explicitFlags["log-level"] {
		cfg.LogLevel = fromFile.LogLevel
	}
	if !explicitFlags["preview-scale"] {
		cfg.Preview = fromFile.Preview
	}
}

// Env is the lookup used by ApplyEnv; os.LookupEnv in production.
type Env func(key string) (string, bool)

// ApplyEnv overrides cfg from ABYSS_* variables. Flags that were set
// explicitly still win.
func ApplyEnv(cfg *Config, lookup Env, explicitFlags map[string]bool) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(flag, key string, dst *string) {
		if v, ok := lookup(key); ok && !explicitFlags[flag] {
			*dst = v
		}
	}
	num := func(flag, key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || explicitFlags[flag] {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("data-dir", "ABYSS_DATA_DIR", &cfg.DataDir)
	str("definitions", "ABYSS_DEFINITIONS", &cfg.Definitions)
	str("log-file", "ABYSS_LOG_FILE", &cfg.LogFile)
	str("log-level", "ABYSS_LOG_LEVEL", &cfg.LogLevel)
	if err := num("port", "ABYSS_PORT", &cfg.Port); err != nil {
		return err
	}
	if err := num("workers", "ABYSS_WORKERS", &cfg.Workers); err != nil {
		return err
	}
	if err := num("max-radius", "ABYSS_MAX_RADIUS", &cfg.MaxRadius); err != nil {
		return err
	}
	if v, ok := lookup("ABYSS_SEED"); ok && !explicitFlags["seed"] {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("ABYSS_SEED: %w", err)
		}
		cfg.Seed = n
	}
	if v, ok := lookup("ABYSS_RANDOMIZE"); ok && !explicitFlags["randomize"] {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ABYSS_RANDOMIZE: %w", err)
		}
		cfg.Randomize = b
	}
	return nil
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
