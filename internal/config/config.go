// Package config holds the runtime configuration used by the command line
// tools. The library itself takes its options programmatically; this file
// exists so litedoc and litedocsh share one config shape and one loader.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DBPath is the SQLite file to open. ":memory:" opens a throwaway
	// in-memory database.
	DBPath string `yaml:"db_path"`

	// Table is the document table name. Invalid characters are stripped
	// before use.
	Table string `yaml:"table"`

	// DisableWAL skips the journal_mode=wal pragma on open.
	DisableWAL bool `yaml:"disable_wal"`

	// History is the shell history file. Empty disables persistence.
	History string `yaml:"history"`

	LogLevel string `yaml:"log_level"`
	TraceSQL bool   `yaml:"trace_sql"`

	Import ImportConfig `yaml:"import"`
}

// ImportConfig tunes the bulk insert path of the litedoc CLI.
type ImportConfig struct {
	// Workers is the size of the line validation pool.
	Workers int `yaml:"workers"`

	// BatchSize is the number of documents committed per transaction.
	BatchSize int `yaml:"batch_size"`
}

func DefaultConfig() *Config {
	return &Config{
		DBPath:   "litedoc.db",
		Table:    "items",
		History:  defaultHistoryPath(),
		LogLevel: "info",
		Import: ImportConfig{
			Workers:   4,
			BatchSize: 500,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing path is not an
// error: the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.Import.Workers < 1 {
		return fmt.Errorf("import.workers must be at least 1, got %d", c.Import.Workers)
	}
	if c.Import.BatchSize < 1 {
		return fmt.Errorf("import.batch_size must be at least 1, got %d", c.Import.BatchSize)
	}
	return nil
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.litedoc_history"
}
