// Package config loads service configuration from a YAML file, with
// defaults suitable for local development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`
	EventBus    string `yaml:"event_bus"`
	PluginsPath string `yaml:"plugins_path"`

	API struct {
		Port int `yaml:"port"`
	} `yaml:"api"`

	Webhook struct {
		Port int `yaml:"port"`
	} `yaml:"webhook"`

	Robot struct {
		ID       string `yaml:"id"`
		Capacity int    `yaml:"capacity"`
	} `yaml:"robot"`

	Engine struct {
		WorkerPoolSize int `yaml:"worker_pool_size"`
	} `yaml:"engine"`

	Tracing struct {
		Enabled     bool   `yaml:"enabled"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"tracing"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		LogLevel:    "info",
		DatabaseURL: "file://./data/workflows",
		EventBus:    "gochannel",
	}
	cfg.API.Port = 9091
	cfg.Webhook.Port = 9092
	cfg.Robot.Capacity = 4
	cfg.Engine.WorkerPoolSize = 32
	cfg.Tracing.ServiceName = "loom"

	return cfg
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error; an unreadable or malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}
