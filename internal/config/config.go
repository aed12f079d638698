// Package config loads reservectl configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration. CLI flags override the
// values loaded here.
type Config struct {
	// GCP
	Project string
	Region  string
	Zones   []string

	// Reconciliation
	GroupName    string
	BindInterval time.Duration
	RunTimeout   time.Duration

	// UseMockProvider switches to the in-memory provider for local
	// development.
	UseMockProvider bool
}

// Load loads configuration from the environment, with an optional .env
// file for local development.
func Load() (*Config, error) {
	// .env file is optional
	_ = godotenv.Load()

	cfg := &Config{
		Project:         getEnv("GCP_PROJECT", ""),
		Region:          getEnv("GCP_REGION", "us-central1"),
		Zones:           getEnvList("GCP_ZONES"),
		GroupName:       getEnv("RESERVECTL_GROUP", ""),
		BindInterval:    getEnvDuration("RESERVECTL_BIND_INTERVAL", 2*time.Second),
		RunTimeout:      getEnvDuration("RESERVECTL_RUN_TIMEOUT", 10*time.Minute),
		UseMockProvider: getEnv("RESERVECTL_MOCK", "") == "true",
	}

	if cfg.GroupName == "" && cfg.Project != "" {
		cfg.GroupName = "capres-" + cfg.Project
	}
	if len(cfg.Zones) == 0 {
		// Default to the region's first three zones.
		for _, suffix := range []string{"a", "b", "c"} {
			cfg.Zones = append(cfg.Zones, cfg.Region+"-"+suffix)
		}
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Project == "" && !c.UseMockProvider {
		return fmt.Errorf("GCP_PROJECT is required")
	}
	if c.GroupName == "" {
		return fmt.Errorf("reservation group name is required (set RESERVECTL_GROUP or --group)")
	}
	return nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList parses a comma-separated environment variable.
func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvDuration parses a duration environment variable.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}
