// Package config provides bridge configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Platform providers.
const (
	ProviderDBus   = "dbus"
	ProviderStatic = "static"
)

// Config holds signal-bridge configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"signal-bridge"`

	// Channel subject override (empty = cap.device.signal_strength.v1)
	Subject      string `envconfig:"SIGNAL_SUBJECT"`
	ManifestFile string `envconfig:"SIGNAL_MANIFEST_FILE"`

	// Timeouts
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s"`

	// Platform
	Provider      string `envconfig:"PLATFORM_PROVIDER" default:"dbus"`
	FixtureFile   string `envconfig:"PLATFORM_FIXTURE_FILE"`
	WifiInterface string `envconfig:"WIFI_INTERFACE"`

	// HTTP health and metrics endpoint
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile       string `envconfig:"LOG_FILE"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"50"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"14"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ValidateForServe checks required config when running the bridge.
func (c *Config) ValidateForServe() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for serve", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	switch c.Provider {
	case ProviderDBus:
	case ProviderStatic:
		if c.FixtureFile == "" {
			return fmt.Errorf("%s - PLATFORM_FIXTURE_FILE is required for the static provider", logPrefix)
		}
	default:
		return fmt.Errorf("%s - unknown PLATFORM_PROVIDER %q (use dbus or static)", logPrefix, c.Provider)
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%s - HTTP_PORT %d out of range", logPrefix, c.HTTPPort)
	}
	return nil
}

// ValidateForQuery checks required config when running the query client.
func (c *Config) ValidateForQuery() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - REQUEST_TIMEOUT must be positive", logPrefix)
	}
	return nil
}
