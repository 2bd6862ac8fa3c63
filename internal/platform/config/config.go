// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Once loaded, configuration is read-only and passed to components through their
constructors. No global variables hold it.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Workhub API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis). Hierarchy snapshots live here.
	RedisURL          string        `env:"REDIS_URL,required"`
	HierarchyCacheTTL time.Duration `env:"HIERARCHY_CACHE_TTL" envDefault:"60s"`

	// Token signing
	JWTPrivKeyPath string        `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH,required"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`

	// Cross-Origin Resource Sharing. Origins ending with this suffix are
	// allowed outside development.
	CORSOriginSuffix string `env:"CORS_ORIGIN_SUFFIX" envDefault:"workhub.app"`

	// BootstrapSuperAdminEmail, when set, names an existing account that is
	// promoted to SUPER_ADMIN at startup if no super admin exists.
	BootstrapSuperAdminEmail string `env:"BOOTSTRAP_SUPER_ADMIN_EMAIL"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}

	// Fails if any field marked 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.HierarchyCacheTTL < 0 {
		return nil, fmt.Errorf("config: HIERARCHY_CACHE_TTL must not be negative")
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("config: ACCESS_TOKEN_TTL must be positive")
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOriginSuffix returns the CORS origin suffix accepted outside development.
func (c *Config) AllowedOriginSuffix() string {
	return c.CORSOriginSuffix
}
