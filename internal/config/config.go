// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

// Package config defines the daemon configuration and its layered
// loading: struct defaults, an optional YAML file, then environment
// variables, each layer overriding the previous one.
package config

import (
	"fmt"
	"time"

	"github.com/kmoyo/raceday/internal/validation"
)

// Config is the root configuration for the daemon.
type Config struct {
	API     APIConfig     `koanf:"api"`
	Channel ChannelConfig `koanf:"channel"`
	Stores  StoresConfig  `koanf:"stores"`
	Ops     OpsConfig     `koanf:"ops"`
	Logging LoggingConfig `koanf:"logging"`
}

// APIConfig configures the upstream event-management REST API.
type APIConfig struct {
	BaseURL  string        `koanf:"base_url" validate:"required,url"`
	Email    string        `koanf:"email" validate:"required,email"`
	Password string        `koanf:"password" validate:"required"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`

	// TokenPath is where the session token is persisted between runs.
	TokenPath string `koanf:"token_path" validate:"required"`
}

// ChannelConfig configures the realtime event channel.
type ChannelConfig struct {
	URL                 string        `koanf:"url" validate:"required,url"`
	HandshakeTimeout    time.Duration `koanf:"handshake_timeout" validate:"gt=0"`
	PingInterval        time.Duration `koanf:"ping_interval" validate:"gt=0"`
	MaxReconnectBackoff time.Duration `koanf:"max_reconnect_backoff" validate:"gt=0"`
}

// StoresConfig configures the mirrored collection stores.
type StoresConfig struct {
	PageSize int `koanf:"page_size" validate:"gte=1,lte=200"`

	// RefetchPerMinute caps reconciliation-triggered background
	// refetches per store.
	RefetchPerMinute int `koanf:"refetch_per_minute" validate:"gte=1"`

	// RefreshInterval is the periodic full-refresh cadence. Zero
	// disables periodic refresh.
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gte=0"`
}

// OpsConfig configures the local operational HTTP surface.
type OpsConfig struct {
	ListenAddr        string        `koanf:"listen_addr" validate:"required"`
	RequestsPerMinute int           `koanf:"requests_per_minute" validate:"gte=1"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Validate checks the configuration for invalid or missing values.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
