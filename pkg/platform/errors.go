package platform

import "errors"

var (
	// ErrPermissionDenied is returned when the access-control layer rejects a platform call.
	ErrPermissionDenied = errors.New("platform: permission denied")
	// ErrUnavailable is returned when the platform has no usable reading.
	ErrUnavailable = errors.New("platform: unavailable")
	// ErrServiceNotFound is returned by a Context that cannot provide a service handle.
	ErrServiceNotFound = errors.New("platform: service not found")
)
