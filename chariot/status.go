// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chariot

import (
	"errors"
	"fmt"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

// Status is the connection state of a Session.
type Status int

const (
	StatusOK   Status = 0
	StatusInit Status = 1
	StatusAPI  Status = 2
	StatusRPC  Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInit:
		return "INIT"
	case StatusAPI:
		return "API"
	case StatusRPC:
		return "RPC"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

var (
	// ErrUnsupportedOS is returned when a local connection is requested on
	// a host that cannot run ChrApi.dll.
	ErrUnsupportedOS = errors.New("chariot: the OS must be based on Windows NT")
	// ErrNotConnected is returned by calls made before Connect or after
	// StopRPC tore down a remote API.
	ErrNotConnected = errors.New("chariot: not connected")
)

// CallError reports a native call that returned something other than
// CHR_OK. The call itself completed.
type CallError struct {
	Func string
	Code chrapi.ReturnCode
}

func (e *CallError) Error() string {
	return fmt.Sprintf("chariot: %s returned %s (%d)", e.Func, e.Code, int32(e.Code))
}

// CodeOf returns the return code carried by err, or CHR_OK when err is nil
// or carries none.
func CodeOf(err error) chrapi.ReturnCode {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return chrapi.OK
}
