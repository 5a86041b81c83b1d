package cpucaps

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable is returned when no backend is registered for
	// the process address width.
	ErrBackendUnavailable = errors.New("no cpu backend available for this process")

	// ErrBackendVersionMismatch matches every *VersionMismatchError.
	ErrBackendVersionMismatch = errors.New("cpu backend version mismatch")

	// ErrBackendQueryFailed matches every *QueryFailedError.
	ErrBackendQueryFailed = errors.New("cpu backend query failed")
)

// VersionMismatchError is returned by every gated attribute when the
// backend's interface version is not compatible with the required one.
type VersionMismatchError struct {
	Required Version
	Actual   Version
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("cpu backend version %s is not supported (required version: %s)", e.Actual, e.Required)
}

func (e *VersionMismatchError) Is(target error) bool {
	return target == ErrBackendVersionMismatch
}

// QueryFailedError is returned when the backend reports that it could not
// determine an attribute, or when the backend call faulted. Err is set only
// for faults.
type QueryFailedError struct {
	Attribute string
	Err       error
}

func (e *QueryFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cpu backend faulted determining %s: %v", e.Attribute, e.Err)
	}
	return fmt.Sprintf("cpu backend could not determine %s", e.Attribute)
}

func (e *QueryFailedError) Is(target error) bool {
	return target == ErrBackendQueryFailed
}

func (e *QueryFailedError) Unwrap() error { return e.Err }
