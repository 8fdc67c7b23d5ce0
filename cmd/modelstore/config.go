package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the CLI configuration. Flags override file values.
type Config struct {
	Log struct {
		Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
		Format string `yaml:"format,omitempty"` // text or json
	} `yaml:"log,omitempty"`

	Catalog struct {
		Path string `yaml:"path,omitempty"` // SQLite catalog database
	} `yaml:"catalog,omitempty"`

	Scripts struct {
		Dir string `yaml:"dir,omitempty"` // load scripts from disk instead of the bundled set
	} `yaml:"scripts,omitempty"`
}

const (
	defaultConfigDirName  = ".modelstore"
	defaultConfigFileName = "config.yaml"
	defaultLogLevel       = "warn"
	defaultLogFormat      = "text"
	defaultCatalogPath    = "catalog.db"
)

// loadConfig reads the config file at path. With an empty path it tries
// ./config.yaml, then ~/.modelstore/config.yaml, and falls back to
// defaults when neither exists.
func loadConfig(path string) (*Config, error) {
	if path != "" {
		cfg, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		applyDefaults(cfg)
		return cfg, nil
	}

	candidates := []string{defaultConfigFileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, defaultConfigDirName, defaultConfigFileName))
	}
	for _, p := range candidates {
		cfg, err := loadFromFile(p)
		if err == nil {
			applyDefaults(cfg)
			return cfg, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", p, err)
		}
	}

	cfg := &Config{}
	applyDefaults(cfg)
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config yaml %s: %w", path, err)
	}
	return &cfg, nil
}

// applyDefaults fills every field that has a safe default.
func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = defaultCatalogPath
	}
}
