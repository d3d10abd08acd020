// Package platform defines the service handles the bridge borrows from the host
// operating environment and the radio readings they report.
package platform

import (
	"context"
	"math"
)

// UnavailableValue is the value a platform reports for a measurement it does not have.
const UnavailableValue = math.MaxInt32

// Technology identifies the radio access technology of a cell-info record.
type Technology string

const (
	TechnologyLTE     Technology = "lte"
	TechnologyGSM     Technology = "gsm"
	TechnologyWCDMA   Technology = "wcdma"
	TechnologyCDMA    Technology = "cdma"
	TechnologyTDSCDMA Technology = "tdscdma"
	TechnologyNR      Technology = "nr"
	TechnologyUnknown Technology = "unknown"
)

// SignalStrength is the telephony aggregate signal-strength reading.
type SignalStrength struct {
	// Level is the platform's 0-4 bar level.
	Level int
}

// CellInfo is one cell registration reported by the telephony service.
// The set of implementations is closed: LteCell, GsmCell, WcdmaCell, OtherCell.
type CellInfo interface {
	Technology() Technology
	isCellInfo()
}

// LteCell is an LTE cell record.
type LteCell struct {
	Dbm int
}

// GsmCell is a GSM cell record.
type GsmCell struct {
	Dbm int
}

// WcdmaCell is a WCDMA (UMTS) cell record.
type WcdmaCell struct {
	Dbm int
}

// OtherCell is a record of any technology the bridge does not read dBm from.
type OtherCell struct {
	Tech Technology
}

func (LteCell) Technology() Technology   { return TechnologyLTE }
func (GsmCell) Technology() Technology   { return TechnologyGSM }
func (WcdmaCell) Technology() Technology { return TechnologyWCDMA }

func (c OtherCell) Technology() Technology {
	if c.Tech == "" {
		return TechnologyUnknown
	}
	return c.Tech
}

func (LteCell) isCellInfo()   {}
func (GsmCell) isCellInfo()   {}
func (WcdmaCell) isCellInfo() {}
func (OtherCell) isCellInfo() {}

// CellDbm returns the dBm of a cell record. ok is false for unsupported
// technologies and for records whose dBm is UnavailableValue.
func CellDbm(c CellInfo) (dbm int, ok bool) {
	switch v := c.(type) {
	case LteCell:
		dbm = v.Dbm
	case GsmCell:
		dbm = v.Dbm
	case WcdmaCell:
		dbm = v.Dbm
	default:
		return 0, false
	}
	if dbm == UnavailableValue {
		return 0, false
	}
	return dbm, true
}

// WifiInfo is the current WiFi connection reading.
type WifiInfo struct {
	// RSSI in dBm.
	RSSI int
}

// Telephony is the cellular service handle.
type Telephony interface {
	// SignalStrength returns the aggregate reading, or nil when the platform has none.
	SignalStrength(ctx context.Context) (*SignalStrength, error)
	// AllCellInfo returns every cell record the platform currently reports.
	AllCellInfo(ctx context.Context) ([]CellInfo, error)
}

// Wifi is the WiFi service handle.
type Wifi interface {
	ConnectionInfo(ctx context.Context) (*WifiInfo, error)
}

// Context is the host environment the service handles are resolved from.
type Context interface {
	Telephony() (Telephony, error)
	Wifi() (Wifi, error)
}
