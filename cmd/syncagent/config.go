package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gooms-backend/internal/offline"

	"gopkg.in/yaml.v3"
)

// agentConfig is read from syncagent.yaml. Environment variables
// GOOMS_SERVER_URL and GOOMS_TOKEN override the file.
type agentConfig struct {
	ServerURL   string        `yaml:"server_url"`
	Token       string        `yaml:"token"`
	DBPath      string        `yaml:"db_path"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	LogLevel    string        `yaml:"log_level"`
}

func defaultConfig() agentConfig {
	return agentConfig{
		ServerURL:   "http://localhost:8080",
		DBPath:      "gooms-offline.db",
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		MaxRetries:  offline.DefaultMaxRetries,
		BaseBackoff: offline.DefaultBaseBackoff,
		LogLevel:    "info",
	}
}

// loadConfig starts from the defaults. A missing file is fine unless the
// path was given explicitly.
func loadConfig(path string, explicit bool) (agentConfig, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if v := os.Getenv("GOOMS_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("GOOMS_TOKEN"); v != "" {
		cfg.Token = v
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	return cfg, cfg.validate()
}

func (c agentConfig) validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.MaxRetries <= 0 {
		return errors.New("max_retries must be greater than 0")
	}
	if c.BaseBackoff <= 0 {
		return errors.New("base_backoff must be greater than 0")
	}
	if c.Interval < time.Second {
		return errors.New("interval must be at least 1s")
	}
	return nil
}
