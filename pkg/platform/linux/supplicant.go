package linux

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/morezero/signal-bridge/pkg/platform"
)

const wpaLogPrefix = "linux:supplicant"

const (
	wpaService        = "fi.w1.wpa_supplicant1"
	wpaPath           = "/fi/w1/wpa_supplicant1"
	wpaInterface      = "fi.w1.wpa_supplicant1.Interface"
	wpaSignalPoll     = wpaInterface + ".SignalPoll"
	wpaStateCompleted = "completed"
)

// Supplicant is the WiFi handle backed by wpa_supplicant.
type Supplicant struct {
	conn   *dbus.Conn
	ifname string
}

// ConnectionInfo implements platform.Wifi. It fails unless the interface is
// associated.
func (s *Supplicant) ConnectionInfo(ctx context.Context) (*platform.WifiInfo, error) {
	path, err := s.interfacePath(ctx)
	if err != nil {
		return nil, err
	}
	obj := s.conn.Object(wpaService, path)

	state, err := getProperty(ctx, obj, wpaInterface, "State")
	if err != nil {
		return nil, fmt.Errorf("%s - State: %w", wpaLogPrefix, classify(err))
	}
	if st, _ := state.Value().(string); st != wpaStateCompleted {
		return nil, fmt.Errorf("%s - interface state %q: %w", wpaLogPrefix, st, platform.ErrUnavailable)
	}

	var poll map[string]dbus.Variant
	if err := obj.CallWithContext(ctx, wpaSignalPoll, 0).Store(&poll); err != nil {
		return nil, fmt.Errorf("%s - SignalPoll: %w", wpaLogPrefix, classify(err))
	}
	rssi, ok := rssiFromPoll(poll)
	if !ok {
		return nil, fmt.Errorf("%s - SignalPoll has no rssi: %w", wpaLogPrefix, platform.ErrUnavailable)
	}
	return &platform.WifiInfo{RSSI: rssi}, nil
}

func (s *Supplicant) interfacePath(ctx context.Context) (dbus.ObjectPath, error) {
	v, err := getProperty(ctx, s.conn.Object(wpaService, wpaPath), wpaService, "Interfaces")
	if err != nil {
		return "", fmt.Errorf("%s - Interfaces: %w", wpaLogPrefix, classify(err))
	}
	paths, _ := v.Value().([]dbus.ObjectPath)
	if len(paths) == 0 {
		return "", fmt.Errorf("%s - no wireless interfaces: %w", wpaLogPrefix, platform.ErrUnavailable)
	}
	if s.ifname == "" {
		return paths[0], nil
	}
	for _, p := range paths {
		name, err := getProperty(ctx, s.conn.Object(wpaService, p), wpaInterface, "Ifname")
		if err != nil {
			continue
		}
		if n, _ := name.Value().(string); n == s.ifname {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s - interface %s not managed: %w", wpaLogPrefix, s.ifname, platform.ErrUnavailable)
}

func rssiFromPoll(poll map[string]dbus.Variant) (int, bool) {
	v, ok := poll["rssi"]
	if !ok {
		return 0, false
	}
	switch n := v.Value().(type) {
	case int32:
		return int(n), true
	case int16:
		return int(n), true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
