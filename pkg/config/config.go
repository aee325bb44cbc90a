// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package config defines the workflowforge configuration schema and helpers
// for loading and validating config files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist at the given path.
var ErrConfigNotFound = errors.New("workflowforge config not found")

// ReservationPolicy controls how the resource coordinator reacts to
// unavailable materials or tools when starting an execution.
type ReservationPolicy string

const (
	// ReservationStrict blocks Start when any required resource is unavailable.
	ReservationStrict ReservationPolicy = "strict"
	// ReservationWarn allows Start to proceed, surfacing shortfalls as warnings.
	ReservationWarn ReservationPolicy = "warn"
)

// Config represents the top-level workflowforge configuration.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Database  DatabaseConfig  `yaml:"database"`
	Resources ResourcesConfig `yaml:"resources"`
	Server    ServerConfig    `yaml:"server,omitempty"`
}

// ProjectConfig describes project-level settings.
type ProjectConfig struct {
	Name string `yaml:"name"`
}

// DatabaseConfig describes the Postgres connection used by internal/store/postgres.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns,omitempty"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout,omitempty"`
}

// ResourcesConfig describes resource-coordinator behavior.
type ResourcesConfig struct {
	Policy         ReservationPolicy `yaml:"policy"`
	OracleTimeout  time.Duration     `yaml:"oracle_timeout,omitempty"`
	RetryAttempts  int               `yaml:"retry_attempts,omitempty"`
}

// ServerConfig describes the optional bind address for a host process
// embedding the engine behind an RPC or HTTP facade. workflowforge itself
// has no such facade; this is plumbing for callers that add one.
type ServerConfig struct {
	Address string `yaml:"address,omitempty"`
}

// DefaultConfigPath returns the default config path for the current working directory.
func DefaultConfigPath() string {
	return "workflowforge.yml"
}

// Exists reports whether a config file exists at the given path.
// It returns (false, nil) if the file does not exist.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// Load reads and validates the config from the given path.
//
// It returns ErrConfigNotFound if the file does not exist.
func Load(path string) (*Config, error) {
	exists, err := Exists(path)
	if err != nil {
		return nil, fmt.Errorf("checking config existence: %w", err)
	}

	if !exists {
		return nil, ErrConfigNotFound
	}

	// nolint:gosec // G304: reading config file from user-specified path is expected behavior
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a Config populated with the settings workflowforge uses
// when a field is omitted from the file on disk.
func Default() *Config {
	return &Config{
		Resources: ResourcesConfig{
			Policy:        ReservationWarn,
			OracleTimeout: 5 * time.Second,
			RetryAttempts: 1,
		},
		Database: DatabaseConfig{
			MaxConns:       10,
			ConnectTimeout: 5 * time.Second,
		},
	}
}

func validate(cfg *Config) error {
	if cfg.Project.Name == "" {
		return errors.New("config: project.name must be non-empty")
	}

	if cfg.Database.DSN == "" {
		return errors.New("config: database.dsn must be non-empty")
	}

	switch cfg.Resources.Policy {
	case ReservationStrict, ReservationWarn:
	case "":
		cfg.Resources.Policy = ReservationWarn
	default:
		return fmt.Errorf("config: resources.policy must be %q or %q, got %q",
			ReservationStrict, ReservationWarn, cfg.Resources.Policy)
	}

	if cfg.Resources.RetryAttempts < 0 {
		return errors.New("config: resources.retry_attempts must be >= 0")
	}

	return nil
}
