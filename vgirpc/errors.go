// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
)

// ErrRpc is a sentinel for use with errors.Is to check whether any error in a
// chain is an *RpcError.
var ErrRpc = &RpcError{}

// ErrProtocol is returned by the client when a response stream is malformed.
var ErrProtocol = errors.New("vgirpc: protocol error")

// RpcError represents an error in the vgi_rpc protocol.
type RpcError struct {
	Type      string // e.g. "ValueError", "RuntimeError"
	Message   string
	Traceback string
	RequestID string
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is supports errors.Is by matching any *RpcError target.
func (e *RpcError) Is(target error) bool {
	_, ok := target.(*RpcError)
	return ok
}

// stackFrame is one Go stack frame in the log_extra wire format.
type stackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// errorExtra is the JSON written to vgi_rpc.log_extra on EXCEPTION batches.
type errorExtra struct {
	ExceptionType    string       `json:"exception_type"`
	ExceptionMessage string       `json:"exception_message"`
	Traceback        string       `json:"traceback,omitempty"`
	Frames           []stackFrame `json:"frames,omitempty"`
}

// errorType names err for the wire: the RpcError type when there is one in
// the chain, else the Go type.
func errorType(err error) string {
	var rpcErr *RpcError
	if errors.As(err, &rpcErr) && rpcErr.Type != "" {
		return rpcErr.Type
	}
	return fmt.Sprintf("%T", err)
}

// errorMessage is the wire message for err. An RpcError contributes its bare
// Message since the type travels separately.
func errorMessage(err error) string {
	var rpcErr *RpcError
	if errors.As(err, &rpcErr) {
		return rpcErr.Message
	}
	return err.Error()
}

// buildErrorExtra encodes err for vgi_rpc.log_extra. Stack details are only
// included when debug is set.
func buildErrorExtra(err error, debug bool) string {
	extra := errorExtra{
		ExceptionType:    errorType(err),
		ExceptionMessage: errorMessage(err),
	}
	if debug {
		buf := make([]byte, 4096)
		extra.Traceback = string(buf[:runtime.Stack(buf, false)])

		pcs := make([]uintptr, 8)
		n := runtime.Callers(3, pcs)
		frames := runtime.CallersFrames(pcs[:n])
		for len(extra.Frames) < 5 {
			frame, more := frames.Next()
			extra.Frames = append(extra.Frames, stackFrame{File: frame.File, Line: frame.Line, Function: frame.Function})
			if !more {
				break
			}
		}
	}
	data, _ := json.Marshal(extra)
	return string(data)
}

// parseErrorExtra rebuilds an RpcError from an EXCEPTION batch.
func parseErrorExtra(message, extraJSON, requestID string) *RpcError {
	e := &RpcError{Type: "RuntimeError", Message: message, RequestID: requestID}
	var extra errorExtra
	if extraJSON != "" && json.Unmarshal([]byte(extraJSON), &extra) == nil {
		if extra.ExceptionType != "" {
			e.Type = extra.ExceptionType
		}
		if extra.ExceptionMessage != "" {
			e.Message = extra.ExceptionMessage
		}
		e.Traceback = extra.Traceback
	}
	return e
}
