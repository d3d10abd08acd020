package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morezero/signal-bridge/pkg/platform"
)

const logPrefix = "dispatcher:dispatch"

// Method names.
const (
	MethodCellularSignalStrength    = "getCellularSignalStrength"
	MethodCellularSignalStrengthDbm = "getCellularSignalStrengthDbm"
	MethodWifiSignalStrength        = "getWifiSignalStrength"
	MethodWifiSignalStrengthDbm     = "getWifiSignalStrengthDbm"
)

const (
	msgSignalStrengthUnavailable = "Signal strength information not available"
	msgCellInfoUnavailable       = "Cell info not available"
	msgDbmUnavailable            = "dBm value not available for current network type"
	msgWifiUnavailable           = "WiFi signal strength information not available"
	msgPhoneStatePermission      = "Required permission READ_PHONE_STATE not granted"
)

// Methods returns the method names the dispatcher implements.
func Methods() []string {
	return []string{
		MethodCellularSignalStrength,
		MethodCellularSignalStrengthDbm,
		MethodWifiSignalStrength,
		MethodWifiSignalStrengthDbm,
	}
}

// IsMethod reports whether name is one of the implemented methods.
func IsMethod(name string) bool {
	switch name {
	case MethodCellularSignalStrength, MethodCellularSignalStrengthDbm, MethodWifiSignalStrength, MethodWifiSignalStrengthDbm:
		return true
	}
	return false
}

// Dispatcher routes method calls to the telephony and WiFi service handles.
type Dispatcher struct {
	telephony platform.Telephony
	wifi      platform.Wifi
}

// NewDispatcher creates a new Dispatcher over the given service handles.
func NewDispatcher(telephony platform.Telephony, wifi platform.Wifi) *Dispatcher {
	return &Dispatcher{telephony: telephony, wifi: wifi}
}

// Dispatch routes a call to the matching platform query and returns its result.
func (d *Dispatcher) Dispatch(ctx context.Context, call *MethodCall) *MethodResult {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s", logPrefix, call.Method, call.ID))

	switch call.Method {
	case MethodCellularSignalStrength:
		return d.handleCellularSignalStrength(ctx, call)
	case MethodCellularSignalStrengthDbm:
		return d.handleCellularSignalStrengthDbm(ctx, call)
	case MethodWifiSignalStrength:
		return d.handleWifiSignalStrength(ctx, call)
	case MethodWifiSignalStrengthDbm:
		return d.handleWifiSignalStrengthDbm(ctx, call)
	default:
		return &MethodResult{ID: call.ID, NotImplemented: true}
	}
}

func (d *Dispatcher) handleCellularSignalStrength(ctx context.Context, call *MethodCall) *MethodResult {
	if d.telephony == nil {
		return errorResult(call.ID, CodeUnavailable, msgSignalStrengthUnavailable)
	}
	ss, err := d.telephony.SignalStrength(ctx)
	if err != nil {
		return telephonyErrorToResult(call.ID, err, msgSignalStrengthUnavailable)
	}
	if ss == nil {
		return errorResult(call.ID, CodeUnavailable, msgSignalStrengthUnavailable)
	}
	return successResult(call.ID, platform.ClampLevel(ss.Level))
}

func (d *Dispatcher) handleCellularSignalStrengthDbm(ctx context.Context, call *MethodCall) *MethodResult {
	if d.telephony == nil {
		return errorResult(call.ID, CodeUnavailable, msgCellInfoUnavailable)
	}
	cells, err := d.telephony.AllCellInfo(ctx)
	if err != nil {
		return telephonyErrorToResult(call.ID, err, msgCellInfoUnavailable)
	}
	if len(cells) == 0 {
		return errorResult(call.ID, CodeUnavailable, msgCellInfoUnavailable)
	}
	// Only the first record is consulted.
	dbm, ok := platform.CellDbm(cells[0])
	if !ok {
		return errorResult(call.ID, CodeUnavailable, msgDbmUnavailable)
	}
	return successResult(call.ID, dbm)
}

func (d *Dispatcher) handleWifiSignalStrength(ctx context.Context, call *MethodCall) *MethodResult {
	info, err := d.wifiInfo(ctx)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - wifi connection info: %v", logPrefix, err))
		return errorResult(call.ID, CodeUnavailable, msgWifiUnavailable)
	}
	return successResult(call.ID, platform.CalculateSignalLevel(info.RSSI, platform.WifiLevels))
}

func (d *Dispatcher) handleWifiSignalStrengthDbm(ctx context.Context, call *MethodCall) *MethodResult {
	info, err := d.wifiInfo(ctx)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - wifi connection info: %v", logPrefix, err))
		return errorResult(call.ID, CodeUnavailable, msgWifiUnavailable)
	}
	// RSSI is already dBm.
	return successResult(call.ID, info.RSSI)
}

func (d *Dispatcher) wifiInfo(ctx context.Context) (*platform.WifiInfo, error) {
	if d.wifi == nil {
		return nil, platform.ErrServiceNotFound
	}
	info, err := d.wifi.ConnectionInfo(ctx)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, platform.ErrUnavailable
	}
	return info, nil
}

// --- helpers ---

func successResult(id string, value int) *MethodResult {
	return &MethodResult{ID: id, Ok: true, Result: value}
}

func errorResult(id, code, message string) *MethodResult {
	return &MethodResult{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: code == CodeUnavailable,
		},
	}
}

func telephonyErrorToResult(id string, err error, unavailableMessage string) *MethodResult {
	if errors.Is(err, platform.ErrPermissionDenied) {
		return errorResult(id, CodePermissionDenied, msgPhoneStatePermission)
	}
	slog.Debug(fmt.Sprintf("%s - telephony call failed: %v", logPrefix, err))
	return errorResult(id, CodeUnavailable, unavailableMessage)
}
