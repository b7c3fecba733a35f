package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk notesctl configuration. Flags win over it.
type fileConfig struct {
	Server       string        `yaml:"server"`
	Token        string        `yaml:"token"`
	Timeout      time.Duration `yaml:"timeout"`
	ShareBaseURL string        `yaml:"share_base_url"`
	SigningKey   string        `yaml:"signing_key"`
}

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
)

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "notesctl", "config.yaml")
}

// loadFileConfig reads path. A missing file yields the defaults.
func loadFileConfig(path string) (fileConfig, error) {
	cfg := fileConfig{Server: defaultServer, Timeout: defaultTimeout}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Server == "" {
		cfg.Server = defaultServer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg, nil
}
