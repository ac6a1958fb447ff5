// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

import (
	"errors"
	"fmt"
)

var (
	// ErrValueRange is returned when a caller value cannot be represented in
	// the descriptor's native type.
	ErrValueRange = errors.New("chrapi: value out of range for native type")
	// ErrStringTooLong is returned when an encoded string does not fit the
	// vendor buffer size (which includes the terminating NUL).
	ErrStringTooLong = errors.New("chrapi: string too long")
	// ErrEncoding is returned when text cannot be converted with the
	// configured codec.
	ErrEncoding = errors.New("chrapi: text encoding")
	// ErrArgCount is returned when a call does not supply exactly one value
	// per input descriptor.
	ErrArgCount = errors.New("chrapi: wrong number of arguments")
	// ErrArgType is returned when a caller value has a Go type the
	// descriptor cannot accept.
	ErrArgType = errors.New("chrapi: unsupported argument type")
	// ErrNoSuchFunction is returned for names absent from the table or from
	// the loaded library.
	ErrNoSuchFunction = errors.New("chrapi: no such function")
	// ErrLibraryNotFound is returned when ChrApi.dll cannot be located or loaded.
	ErrLibraryNotFound = errors.New("chrapi: library not found")
	// ErrNotInstalled is returned when no IxChariot installation is registered.
	ErrNotInstalled = errors.New("chrapi: IxChariot is not installed")
	// ErrUnsupportedPlatform is returned by the native loader on platforms
	// that cannot host ChrApi.dll.
	ErrUnsupportedPlatform = errors.New("chrapi: native library not available on this platform")
)

// UnsupportedError reports a call to a function that the installed
// IxChariot version does not provide.
type UnsupportedError struct {
	Name       string
	Constraint Constraint
	Version    Version
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("chrapi: %s requires IxChariot %s, installed %s", e.Name, e.Constraint, e.Version)
}
