// Package config assembles process configuration from the environment,
// with optional .env file support.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the server needs at
// startup. There is no file-based config layer: every field is read
// directly from the process environment.
type Config struct {
	Port           int
	LogLevel       string
	Env            string
	StoresType     string
	AuthType       string
	SSEIdleTimeout time.Duration
}

const (
	defaultPort           = 8080
	defaultLogLevel       = "info"
	defaultEnv            = "development"
	defaultStoresType     = "nanodb-memory"
	defaultAuthType       = "noop"
	defaultSSEIdleTimeout = 5 * time.Minute
)

// Load reads a .env file if present (missing files are not an error,
// matching godotenv's own convention) and then assembles a Config from
// the process environment, falling back to defaults for anything unset.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: loading .env: %w", err)
	}

	cfg := Config{
		Port:           defaultPort,
		LogLevel:       defaultLogLevel,
		Env:            defaultEnv,
		StoresType:     defaultStoresType,
		AuthType:       defaultAuthType,
		SSEIdleTimeout: defaultSSEIdleTimeout,
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides mutates cfg in place for every recognized
// environment variable that is set, leaving defaults untouched
// otherwise.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("STORES_TYPE"); v != "" {
		cfg.StoresType = v
	}
	if v := os.Getenv("AUTH_TYPE"); v != "" {
		cfg.AuthType = v
	}
	if v := os.Getenv("SSE_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid SSE_IDLE_TIMEOUT %q: %w", v, err)
		}
		cfg.SSEIdleTimeout = d
	}
	return nil
}
