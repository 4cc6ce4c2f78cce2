package prog

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elves/asyncline/pkg/history"
)

// Config keeps the settings of the demo. It is read from a YAML file, and
// command-line flags override it.
type Config struct {
	Prompt     string `yaml:"prompt"`
	MaxHistory int    `yaml:"max-history"`
	// Path of the bbolt database that keeps history across sessions. Empty
	// means history is not persisted.
	HistoryDB string `yaml:"history-db"`
	// Path of the log file. Empty means log messages are printed above the
	// prompt.
	Log string `yaml:"log"`
	// Address to serve /metrics on. Empty disables metrics.
	MetricsAddr string `yaml:"metrics-addr"`
	// Whether submitted and interrupted lines stay on the screen.
	Echo  bool `yaml:"echo"`
	Emacs bool `yaml:"emacs"`
	Color bool `yaml:"color"`

	// Intervals of the two demo timers.
	TaskInterval    time.Duration `yaml:"task-interval"`
	LoggingInterval time.Duration `yaml:"logging-interval"`
}

// DefaultConfig returns the Config used when there is no config file.
func DefaultConfig() Config {
	return Config{
		Prompt:          "> ",
		MaxHistory:      history.DefaultMaxSize,
		Echo:            true,
		TaskInterval:    2 * time.Second,
		LoggingInterval: 3 * time.Second,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.TaskInterval <= 0 || cfg.LoggingInterval <= 0 {
		return cfg, fmt.Errorf("parse config %s: timer intervals must be positive", path)
	}
	return cfg, nil
}
