package camera

import (
	"fmt"

	"petscan/internal/services"
)

var (
	// ErrPermissionDenied means the device exists but cannot be opened by this user.
	ErrPermissionDenied = fmt.Errorf("%w: camera permission denied", services.ErrDevice)
	// ErrDeviceUnavailable means the device is missing, busy, or produced no frames.
	ErrDeviceUnavailable = fmt.Errorf("%w: camera unavailable", services.ErrDevice)
)

func unavailable(device, detail string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %s: %w", ErrDeviceUnavailable, device, detail, err)
	}
	return fmt.Errorf("%w: %s: %s", ErrDeviceUnavailable, device, detail)
}

func permissionDenied(device string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, device, err)
	}
	return fmt.Errorf("%w: %s", ErrPermissionDenied, device)
}
