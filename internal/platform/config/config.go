// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Auth) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the PU Connect session daemon.
type Config struct {

	// Status server settings
	StatusPort  string `env:"STATUS_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL) — the profile store
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis) — the profile snapshot cache
	RedisURL string `env:"REDIS_URL,required"`

	// Remote auth authority (GoTrue-compatible REST endpoint)
	AuthURL     string `env:"AUTH_URL,required"`
	AuthAnonKey string `env:"AUTH_ANON_KEY,required"`

	// SMS gateway for welcome notifications
	SMSBaseURL string  `env:"SMS_BASE_URL" envDefault:"https://sms.arkesel.com"`
	SMSAPIKey  string  `env:"SMS_API_KEY"`
	SMSSender  string  `env:"SMS_SENDER"   envDefault:"PU Connect"`
	SMSRate    float64 `env:"SMS_RATE"     envDefault:"1"`

	// HeartbeatInterval overrides the presence heartbeat cadence.
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"10m"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the daemon is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the daemon is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
