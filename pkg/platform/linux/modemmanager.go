package linux

import (
	"context"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"

	"github.com/morezero/signal-bridge/pkg/platform"
)

const mmLogPrefix = "linux:modemmanager"

const (
	mmService        = "org.freedesktop.ModemManager1"
	mmPath           = "/org/freedesktop/ModemManager1"
	mmModemInterface = "org.freedesktop.ModemManager1.Modem"
	mmGetCellInfo    = mmModemInterface + ".GetCellInfo"
)

// MMCellType values.
const (
	mmCellTypeUnknown = 0
	mmCellTypeCDMA    = 1
	mmCellTypeGSM     = 2
	mmCellTypeUMTS    = 3
	mmCellTypeTDSCDMA = 4
	mmCellTypeLTE     = 5
	mmCellType5GNR    = 6
)

// ModemManager is the telephony handle backed by the first modem
// ModemManager exposes.
type ModemManager struct {
	conn *dbus.Conn
}

// SignalStrength implements platform.Telephony. With no modem present the
// reading is nil.
func (m *ModemManager) SignalStrength(ctx context.Context) (*platform.SignalStrength, error) {
	path, err := m.modemPath(ctx)
	if err != nil || path == "" {
		return nil, err
	}
	v, err := getProperty(ctx, m.conn.Object(mmService, path), mmModemInterface, "SignalQuality")
	if err != nil {
		return nil, fmt.Errorf("%s - SignalQuality: %w", mmLogPrefix, classify(err))
	}
	percent, ok := signalQualityPercent(v.Value())
	if !ok {
		return nil, nil
	}
	return &platform.SignalStrength{Level: levelFromQuality(percent)}, nil
}

// AllCellInfo implements platform.Telephony.
func (m *ModemManager) AllCellInfo(ctx context.Context) ([]platform.CellInfo, error) {
	path, err := m.modemPath(ctx)
	if err != nil || path == "" {
		return nil, err
	}
	var infos []map[string]dbus.Variant
	if err := m.conn.Object(mmService, path).CallWithContext(ctx, mmGetCellInfo, 0).Store(&infos); err != nil {
		return nil, fmt.Errorf("%s - GetCellInfo: %w", mmLogPrefix, classify(err))
	}
	cells := make([]platform.CellInfo, 0, len(infos))
	for _, props := range infos {
		cells = append(cells, cellFromProperties(props))
	}
	return cells, nil
}

// modemPath returns the lowest modem object path, or "" when there is none.
func (m *ModemManager) modemPath(ctx context.Context) (dbus.ObjectPath, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := m.conn.Object(mmService, mmPath).CallWithContext(ctx, dbusGetManagedObjs, 0).Store(&objects)
	if err != nil {
		return "", fmt.Errorf("%s - GetManagedObjects: %w", mmLogPrefix, classify(err))
	}
	return firstModem(objects), nil
}

func firstModem(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) dbus.ObjectPath {
	var paths []string
	for path, ifaces := range objects {
		if _, ok := ifaces[mmModemInterface]; ok {
			paths = append(paths, string(path))
		}
	}
	if len(paths) == 0 {
		return ""
	}
	sort.Strings(paths)
	return dbus.ObjectPath(paths[0])
}

// signalQualityPercent unpacks the (ub) SignalQuality property.
func signalQualityPercent(v interface{}) (uint32, bool) {
	fields, ok := v.([]interface{})
	if !ok || len(fields) == 0 {
		return 0, false
	}
	percent, ok := fields[0].(uint32)
	return percent, ok
}

// levelFromQuality maps a 0-100 quality onto the 0-4 level scale.
func levelFromQuality(percent uint32) int {
	switch {
	case percent == 0:
		return 0
	case percent < 25:
		return 1
	case percent < 50:
		return 2
	case percent < 75:
		return 3
	default:
		return 4
	}
}

// cellFromProperties converts one GetCellInfo dictionary into a cell variant.
// LTE reads RSRP, UMTS reads RSCP, GSM converts RxLev to dBm.
func cellFromProperties(props map[string]dbus.Variant) platform.CellInfo {
	cellType, _ := uintValue(props["cell-type"])
	switch cellType {
	case mmCellTypeLTE:
		return platform.LteCell{Dbm: dbmValue(props, "rsrp")}
	case mmCellTypeUMTS:
		return platform.WcdmaCell{Dbm: dbmValue(props, "rscp")}
	case mmCellTypeGSM:
		rxlev, ok := uintValue(props["rxlev"])
		if !ok || rxlev > 63 {
			return platform.GsmCell{Dbm: platform.UnavailableValue}
		}
		return platform.GsmCell{Dbm: int(rxlev) - 111}
	case mmCellTypeCDMA:
		return platform.OtherCell{Tech: platform.TechnologyCDMA}
	case mmCellTypeTDSCDMA:
		return platform.OtherCell{Tech: platform.TechnologyTDSCDMA}
	case mmCellType5GNR:
		return platform.OtherCell{Tech: platform.TechnologyNR}
	default:
		return platform.OtherCell{Tech: platform.TechnologyUnknown}
	}
}

func dbmValue(props map[string]dbus.Variant, key string) int {
	v, ok := props[key]
	if !ok {
		return platform.UnavailableValue
	}
	f, ok := v.Value().(float64)
	if !ok {
		return platform.UnavailableValue
	}
	return int(f)
}

func uintValue(v dbus.Variant) (uint32, bool) {
	switch n := v.Value().(type) {
	case uint32:
		return n, true
	case uint8:
		return uint32(n), true
	case uint16:
		return uint32(n), true
	case int32:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	default:
		return 0, false
	}
}
