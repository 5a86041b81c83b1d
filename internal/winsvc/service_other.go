//go:build !windows

package winsvc

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("windows services are not supported on this platform")

// IsWindowsService always returns false on non-Windows platforms.
func IsWindowsService() bool { return false }

// SetupEventLog is a no-op on non-Windows platforms.
func (Service) SetupEventLog() {}

func (Service) Run(_ func(ctx context.Context) error) error { return errUnsupported }

func (Service) Install() error { return errUnsupported }

func (Service) Uninstall() error { return errUnsupported }

func (Service) Status() (string, error) { return "", errUnsupported }
