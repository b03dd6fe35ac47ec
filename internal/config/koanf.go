// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched
// in order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/raceday/config.yaml",
	"/etc/raceday/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "RACEDAY_CONFIG"

// envPrefix namespaces every environment override, e.g.
// RACEDAY_API_BASE_URL -> api.base_url.
const envPrefix = "RACEDAY_"

// defaultConfig returns a Config with all default values. These are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "",
			Email:     "",
			Password:  "",
			Timeout:   30 * time.Second,
			TokenPath: "/data/raceday/token",
		},
		Channel: ChannelConfig{
			URL:                 "",
			HandshakeTimeout:    10 * time.Second,
			PingInterval:        30 * time.Second,
			MaxReconnectBackoff: 32 * time.Second,
		},
		Stores: StoresConfig{
			PageSize:         20,
			RefetchPerMinute: 6,
			RefreshInterval:  5 * time.Minute,
		},
		Ops: OpsConfig{
			ListenAddr:        "127.0.0.1:7311",
			RequestsPerMinute: 120,
			ShutdownTimeout:   10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: RACEDAY_* overrides any setting
//
// Precedence is ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// RACEDAY_API_BASE_URL -> api.base_url
	// RACEDAY_CHANNEL_URL  -> channel.url
	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile searches for a config file, preferring the env
// override, then the default paths. Returns "" when none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps RACEDAY_* environment variable names to koanf
// config paths. Each section name is a known prefix; the remainder of
// the variable keeps its underscores as the key.
//
// Examples:
//   - RACEDAY_API_BASE_URL      -> api.base_url
//   - RACEDAY_STORES_PAGE_SIZE  -> stores.page_size
//   - RACEDAY_LOGGING_LEVEL     -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	for _, section := range []string{"api", "channel", "stores", "ops", "logging"} {
		prefix := section + "_"
		if strings.HasPrefix(key, prefix) {
			return section + "." + strings.TrimPrefix(key, prefix)
		}
	}

	// Unmapped keys are skipped so unrelated RACEDAY_* variables
	// (like RACEDAY_CONFIG) cannot pollute the config tree.
	return ""
}
