package config

import (
	"os"
	"testing"
	"time"
)

var allEnvVars = []string{
	"COMMS_URL", "SERVICE_NAME",
	"SIGNAL_SUBJECT", "SIGNAL_MANIFEST_FILE",
	"REQUEST_TIMEOUT",
	"PLATFORM_PROVIDER", "PLATFORM_FIXTURE_FILE", "WIFI_INTERFACE",
	"HTTP_PORT", "HEALTH_CHECK_TIMEOUT",
	"LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range allEnvVars {
		if old, ok := os.LookupEnv(env); ok {
			env := env
			t.Cleanup(func() { os.Setenv(env, old) })
		}
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://127.0.0.1:4222")
	}
	if cfg.COMMSName != "signal-bridge" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "signal-bridge")
	}
	if cfg.Subject != "" {
		t.Errorf("config:config_test - Subject = %q, want empty", cfg.Subject)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.Provider != ProviderDBus {
		t.Errorf("config:config_test - Provider = %q, want dbus", cfg.Provider)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("config:config_test - HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 5*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 5s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.LogFile != "" || cfg.LogMaxSizeMB != 50 || cfg.LogMaxBackups != 3 || cfg.LogMaxAgeDays != 14 {
		t.Errorf("config:config_test - unexpected log rotation defaults: %+v", cfg)
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - defaults should validate: %v", err)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	overrides := map[string]string{
		"COMMS_URL":             "nats://custom:4222",
		"SERVICE_NAME":          "bench-bridge",
		"SIGNAL_SUBJECT":        "cap.lab.signal.v1",
		"SIGNAL_MANIFEST_FILE":  "/etc/signal/manifest.yaml",
		"REQUEST_TIMEOUT":       "750ms",
		"PLATFORM_PROVIDER":     "static",
		"PLATFORM_FIXTURE_FILE": "/tmp/radio.yaml",
		"WIFI_INTERFACE":        "wlan1",
		"HTTP_PORT":             "9090",
		"HEALTH_CHECK_TIMEOUT":  "2s",
		"LOG_LEVEL":             "debug",
		"LOG_FILE":              "/var/log/signal-bridge.log",
		"LOG_MAX_SIZE_MB":       "10",
	}
	for key, val := range overrides {
		t.Setenv(key, val)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://custom:4222" {
		t.Errorf("config:config_test - COMMSURL = %q", cfg.COMMSURL)
	}
	if cfg.COMMSName != "bench-bridge" {
		t.Errorf("config:config_test - COMMSName = %q", cfg.COMMSName)
	}
	if cfg.Subject != "cap.lab.signal.v1" {
		t.Errorf("config:config_test - Subject = %q", cfg.Subject)
	}
	if cfg.ManifestFile != "/etc/signal/manifest.yaml" {
		t.Errorf("config:config_test - ManifestFile = %q", cfg.ManifestFile)
	}
	if cfg.RequestTimeout != 750*time.Millisecond {
		t.Errorf("config:config_test - RequestTimeout = %v, want 750ms", cfg.RequestTimeout)
	}
	if cfg.Provider != ProviderStatic || cfg.FixtureFile != "/tmp/radio.yaml" {
		t.Errorf("config:config_test - provider = %q fixture = %q", cfg.Provider, cfg.FixtureFile)
	}
	if cfg.WifiInterface != "wlan1" {
		t.Errorf("config:config_test - WifiInterface = %q", cfg.WifiInterface)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("config:config_test - HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 2*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 2s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "debug" || cfg.LogFile != "/var/log/signal-bridge.log" || cfg.LogMaxSizeMB != 10 {
		t.Errorf("config:config_test - logging = %q %q %d", cfg.LogLevel, cfg.LogFile, cfg.LogMaxSizeMB)
	}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - overrides should validate: %v", err)
	}
}

func TestLoadConfig_BadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("REQUEST_TIMEOUT", "soon")

	if _, err := LoadConfig(); err == nil {
		t.Error("config:config_test - expected error for unparseable REQUEST_TIMEOUT")
	}
}

func TestValidateForServe(t *testing.T) {
	base := func() Config {
		return Config{
			COMMSURL:           "nats://127.0.0.1:4222",
			RequestTimeout:     time.Second,
			HealthCheckTimeout: time.Second,
			Provider:           ProviderDBus,
			HTTPPort:           8080,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing url", func(c *Config) { c.COMMSURL = "" }, true},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"zero health timeout", func(c *Config) { c.HealthCheckTimeout = 0 }, true},
		{"static without fixture", func(c *Config) { c.Provider = ProviderStatic }, true},
		{"static with fixture", func(c *Config) { c.Provider = ProviderStatic; c.FixtureFile = "radio.yaml" }, false},
		{"unknown provider", func(c *Config) { c.Provider = "android" }, true},
		{"port out of range", func(c *Config) { c.HTTPPort = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.ValidateForServe()
			if (err != nil) != tt.wantErr {
				t.Errorf("config:config_test - ValidateForServe() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForQuery(t *testing.T) {
	cfg := Config{COMMSURL: "nats://127.0.0.1:4222", RequestTimeout: time.Second}
	if err := cfg.ValidateForQuery(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
	cfg.RequestTimeout = 0
	if err := cfg.ValidateForQuery(); err == nil {
		t.Error("config:config_test - expected error for zero timeout")
	}
}
