// Package linux resolves the platform service handles from the system D-Bus:
// ModemManager for telephony and wpa_supplicant for WiFi.
package linux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/morezero/signal-bridge/pkg/platform"
)

const logPrefix = "linux:context"

const (
	dbusService        = "org.freedesktop.DBus"
	dbusPath           = "/org/freedesktop/DBus"
	dbusNameHasOwner   = dbusService + ".NameHasOwner"
	dbusPropertiesGet  = "org.freedesktop.DBus.Properties.Get"
	dbusGetManagedObjs = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	errAccessDenied    = "org.freedesktop.DBus.Error.AccessDenied"
	errAuthRequired    = "org.freedesktop.DBus.Error.InteractiveAuthorizationRequired"
	errMMUnauthorized  = "org.freedesktop.ModemManager1.Error.Core.Unauthorized"
	errWpaPermission   = "fi.w1.wpa_supplicant1.PermissionDenied"
	errServiceUnknown  = "org.freedesktop.DBus.Error.ServiceUnknown"
	errNameHasNoOwner  = "org.freedesktop.DBus.Error.NameHasNoOwner"
)

// Options configures the D-Bus context.
type Options struct {
	// WifiInterface selects the wpa_supplicant interface by name (e.g. wlan0).
	// Empty picks the first interface wpa_supplicant reports.
	WifiInterface string
}

// Context is a platform.Context on the system bus.
type Context struct {
	conn *dbus.Conn
	opts Options
}

// Open connects to the system bus.
func Open(opts Options) (*Context, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to system bus: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to system bus", logPrefix))
	return &Context{conn: conn, opts: opts}, nil
}

// Close releases the bus connection.
func (c *Context) Close() error {
	return c.conn.Close()
}

// Telephony implements platform.Context.
func (c *Context) Telephony() (platform.Telephony, error) {
	if err := c.requireService(mmService); err != nil {
		return nil, err
	}
	return &ModemManager{conn: c.conn}, nil
}

// Wifi implements platform.Context.
func (c *Context) Wifi() (platform.Wifi, error) {
	if err := c.requireService(wpaService); err != nil {
		return nil, err
	}
	return &Supplicant{conn: c.conn, ifname: c.opts.WifiInterface}, nil
}

func (c *Context) requireService(name string) error {
	var has bool
	err := c.conn.Object(dbusService, dbusPath).Call(dbusNameHasOwner, 0, name).Store(&has)
	if err != nil {
		return fmt.Errorf("%s - lookup %s: %w", logPrefix, name, classify(err))
	}
	if !has {
		// Activatable services have no owner until first call; treat them as present.
		var activatable []string
		if err := c.conn.Object(dbusService, dbusPath).Call(dbusService+".ListActivatableNames", 0).Store(&activatable); err == nil {
			for _, n := range activatable {
				if n == name {
					return nil
				}
			}
		}
		return fmt.Errorf("%s - %s: %w", logPrefix, name, platform.ErrServiceNotFound)
	}
	return nil
}

// getProperty reads one property with the caller's context.
func getProperty(ctx context.Context, obj dbus.BusObject, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := obj.CallWithContext(ctx, dbusPropertiesGet, 0, iface, name).Store(&v)
	return v, err
}

// classify maps a bus error onto the platform error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch errorName(err) {
	case errAccessDenied, errAuthRequired, errMMUnauthorized, errWpaPermission:
		return fmt.Errorf("%w: %v", platform.ErrPermissionDenied, err)
	case errServiceUnknown, errNameHasNoOwner:
		return fmt.Errorf("%w: %v", platform.ErrServiceNotFound, err)
	}
	if errors.Is(err, platform.ErrPermissionDenied) || errors.Is(err, platform.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", platform.ErrUnavailable, err)
}

func errorName(err error) string {
	var byValue dbus.Error
	if errors.As(err, &byValue) {
		return byValue.Name
	}
	var byPointer *dbus.Error
	if errors.As(err, &byPointer) && byPointer != nil {
		return byPointer.Name
	}
	return ""
}
