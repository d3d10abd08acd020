// Package static provides a platform.Context whose readings come from a
// fixture rather than radio hardware. It backs host simulation and tests.
package static

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/morezero/signal-bridge/pkg/platform"
)

const logPrefix = "static:static"

// Fixture is the YAML document describing the simulated radio state.
type Fixture struct {
	Telephony TelephonyFixture `yaml:"telephony"`
	Wifi      WifiFixture      `yaml:"wifi"`
}

// TelephonyFixture describes the simulated cellular service.
type TelephonyFixture struct {
	// Absent removes the telephony service from the context.
	Absent           bool          `yaml:"absent"`
	PermissionDenied bool          `yaml:"permissionDenied"`
	SignalLevel      *int          `yaml:"signalLevel"`
	Cells            []CellFixture `yaml:"cells"`
}

// CellFixture is one simulated cell record. A nil Dbm is reported as
// platform.UnavailableValue.
type CellFixture struct {
	Technology string `yaml:"technology"`
	Dbm        *int   `yaml:"dbm"`
}

// WifiFixture describes the simulated WiFi service.
type WifiFixture struct {
	Absent           bool `yaml:"absent"`
	PermissionDenied bool `yaml:"permissionDenied"`
	Connected        bool `yaml:"connected"`
	RSSI             int  `yaml:"rssi"`
}

// Provider serves fixture readings. It implements platform.Context,
// platform.Telephony and platform.Wifi.
type Provider struct {
	mu      sync.RWMutex
	fixture Fixture
}

// New returns a Provider over the given fixture.
func New(f Fixture) *Provider {
	return &Provider{fixture: f}
}

// LoadFile reads a YAML fixture from path.
func LoadFile(path string) (*Provider, error) {
	f, err := readFixture(path)
	if err != nil {
		return nil, err
	}
	return New(*f), nil
}

// Reload replaces the fixture with the contents of path. On error the
// current fixture is kept. Absent flags only take effect at the next attach.
func (p *Provider) Reload(path string) error {
	f, err := readFixture(path)
	if err != nil {
		return err
	}
	p.Set(*f)
	return nil
}

func readFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read fixture %s: %w", logPrefix, path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse fixture %s: %w", logPrefix, path, err)
	}
	return f, nil
}

// ParseFixture decodes and validates a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, err
	}
	for i, c := range f.Telephony.Cells {
		if _, err := ParseTechnology(c.Technology); err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
	}
	return &f, nil
}

// Set replaces the fixture.
func (p *Provider) Set(f Fixture) {
	p.mu.Lock()
	p.fixture = f
	p.mu.Unlock()
}

func (p *Provider) snapshot() Fixture {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fixture
}

// Telephony implements platform.Context.
func (p *Provider) Telephony() (platform.Telephony, error) {
	if p.snapshot().Telephony.Absent {
		return nil, fmt.Errorf("%s - telephony: %w", logPrefix, platform.ErrServiceNotFound)
	}
	return p, nil
}

// Wifi implements platform.Context.
func (p *Provider) Wifi() (platform.Wifi, error) {
	if p.snapshot().Wifi.Absent {
		return nil, fmt.Errorf("%s - wifi: %w", logPrefix, platform.ErrServiceNotFound)
	}
	return p, nil
}

// SignalStrength implements platform.Telephony.
func (p *Provider) SignalStrength(_ context.Context) (*platform.SignalStrength, error) {
	t := p.snapshot().Telephony
	if t.PermissionDenied {
		return nil, platform.ErrPermissionDenied
	}
	if t.SignalLevel == nil {
		return nil, nil
	}
	return &platform.SignalStrength{Level: *t.SignalLevel}, nil
}

// AllCellInfo implements platform.Telephony.
func (p *Provider) AllCellInfo(_ context.Context) ([]platform.CellInfo, error) {
	t := p.snapshot().Telephony
	if t.PermissionDenied {
		return nil, platform.ErrPermissionDenied
	}
	if len(t.Cells) == 0 {
		return nil, nil
	}
	cells := make([]platform.CellInfo, 0, len(t.Cells))
	for _, c := range t.Cells {
		tech, err := ParseTechnology(c.Technology)
		if err != nil {
			return nil, err
		}
		dbm := platform.UnavailableValue
		if c.Dbm != nil {
			dbm = *c.Dbm
		}
		cells = append(cells, NewCell(tech, dbm))
	}
	return cells, nil
}

// ConnectionInfo implements platform.Wifi.
func (p *Provider) ConnectionInfo(_ context.Context) (*platform.WifiInfo, error) {
	w := p.snapshot().Wifi
	if w.PermissionDenied {
		return nil, platform.ErrPermissionDenied
	}
	if !w.Connected {
		return nil, fmt.Errorf("%s - wifi not connected: %w", logPrefix, platform.ErrUnavailable)
	}
	return &platform.WifiInfo{RSSI: w.RSSI}, nil
}

// ParseTechnology maps a fixture technology name to a platform.Technology.
func ParseTechnology(name string) (platform.Technology, error) {
	switch t := platform.Technology(strings.ToLower(strings.TrimSpace(name))); t {
	case platform.TechnologyLTE, platform.TechnologyGSM, platform.TechnologyWCDMA,
		platform.TechnologyCDMA, platform.TechnologyTDSCDMA, platform.TechnologyNR:
		return t, nil
	case "umts":
		return platform.TechnologyWCDMA, nil
	default:
		return "", fmt.Errorf("unknown cell technology %q", name)
	}
}

// NewCell builds the cell variant for a technology.
func NewCell(tech platform.Technology, dbm int) platform.CellInfo {
	switch tech {
	case platform.TechnologyLTE:
		return platform.LteCell{Dbm: dbm}
	case platform.TechnologyGSM:
		return platform.GsmCell{Dbm: dbm}
	case platform.TechnologyWCDMA:
		return platform.WcdmaCell{Dbm: dbm}
	default:
		return platform.OtherCell{Tech: tech}
	}
}
