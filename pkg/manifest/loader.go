package manifest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	masterminds "github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v2"

	"github.com/morezero/signal-bridge/pkg/commsutil"
	"github.com/morezero/signal-bridge/pkg/dispatcher"
)

const logPrefix = "manifest:loader"

// DefaultVersion is the version of the built-in manifest.
const DefaultVersion = "1.0.0"

// Load reads a manifest from the first readable path, falling back to the
// built-in default. Files ending in .yaml or .yml are parsed as YAML, anything
// else as JSON. A file that parses but fails validation is an error.
func Load(paths ...string) (*Manifest, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}

		data, err := os.ReadFile(p)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Cannot read manifest file %s: %v", logPrefix, p, err))
			continue
		}

		m, err := Parse(data, filepath.Ext(p))
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse manifest file %s: %v", logPrefix, p, err))
			continue
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%s - invalid manifest %s: %w", logPrefix, p, err)
		}

		slog.Info(fmt.Sprintf("%s - Loaded manifest from %s", logPrefix, p))
		return m, nil
	}

	slog.Info(fmt.Sprintf("%s - Using default manifest", logPrefix))
	return Default(), nil
}

// Parse decodes a manifest; ext selects the format.
func Parse(data []byte, ext string) (*Manifest, error) {
	var m Manifest
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// Validate checks the manifest version is semver and every listed method is
// one the dispatcher implements.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%s - name is required", logPrefix)
	}
	if _, err := masterminds.StrictNewVersion(m.Version); err != nil {
		return fmt.Errorf("%s - version %q is not semver: %w", logPrefix, m.Version, err)
	}
	known := make(map[string]bool)
	for _, name := range dispatcher.Methods() {
		known[name] = true
	}
	for _, name := range m.Methods {
		if !known[name] {
			return fmt.Errorf("%s - unknown method %q", logPrefix, name)
		}
	}
	return nil
}

// Major returns the major component of the manifest version.
func (m *Manifest) Major() int {
	v, err := masterminds.NewVersion(m.Version)
	if err != nil {
		return 0
	}
	return int(v.Major())
}

// ChannelSubject returns Subject, or the capability subject derived from the
// channel name and the major version when Subject is unset.
func (m *Manifest) ChannelSubject() string {
	if m.Subject != "" {
		return m.Subject
	}
	channel := m.Channel
	if channel == "" {
		channel = commsutil.ChannelName
	}
	return commsutil.BuildCapabilitySubject(commsutil.AppName, channel, m.Major())
}

// WithSubject returns a copy of m bound to the given channel subject.
func (m *Manifest) WithSubject(subject string) *Manifest {
	out := *m
	out.Subject = subject
	return &out
}

// Default returns the built-in manifest.
func Default() *Manifest {
	m := &Manifest{
		Name:        "signal-bridge",
		Version:     DefaultVersion,
		Description: "Cellular and WiFi signal strength readings from the host platform",
		Channel:     commsutil.ChannelName,
		Methods:     dispatcher.Methods(),
		MethodsMetadata: map[string]MethodMetadata{
			dispatcher.MethodCellularSignalStrength: {
				Description: "Aggregate cellular signal level",
				Result:      "level 0-4",
				Errors:      []string{dispatcher.CodeUnavailable, dispatcher.CodePermissionDenied},
			},
			dispatcher.MethodCellularSignalStrengthDbm: {
				Description: "dBm of the first reported LTE, GSM or WCDMA cell",
				Result:      "dBm",
				Errors:      []string{dispatcher.CodeUnavailable, dispatcher.CodePermissionDenied},
			},
			dispatcher.MethodWifiSignalStrength: {
				Description: "WiFi RSSI mapped onto 5 levels",
				Result:      "level 0-4",
				Errors:      []string{dispatcher.CodeUnavailable},
			},
			dispatcher.MethodWifiSignalStrengthDbm: {
				Description: "Raw WiFi RSSI",
				Result:      "dBm",
				Errors:      []string{dispatcher.CodeUnavailable},
			},
		},
	}
	m.Subject = m.ChannelSubject()
	return m
}
