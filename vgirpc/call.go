// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// CallContext provides request-scoped information and logging to method handlers.
type CallContext struct {
	// Ctx is the request-scoped context, carrying cancellation and deadlines.
	Ctx context.Context
	// RequestID is the client-supplied identifier for this request, echoed in
	// all response metadata.
	RequestID string
	// ServerID is the server identifier set via [Server.SetServerID].
	ServerID string
	// Method is the name of the RPC method being invoked.
	Method string
	// LogLevel is the client-requested minimum log severity. Log messages
	// below this level are silently discarded by [CallContext.ClientLog].
	LogLevel LogLevel
	logs     []LogMessage
}

// ClientLog records a log message that will be sent to the client.
// The message is only recorded if its level is at or above the client-requested log level.
func (ctx *CallContext) ClientLog(level LogLevel, msg string, extras ...KV) {
	if logLevelPriority(level) > logLevelPriority(ctx.LogLevel) {
		return
	}
	logMsg := LogMessage{Level: level, Message: msg}
	if len(extras) > 0 {
		logMsg.Extras = make(map[string]string, len(extras))
		for _, kv := range extras {
			logMsg.Extras[kv.Key] = kv.Value
		}
	}
	ctx.logs = append(ctx.logs, logMsg)
}

// drainLogs returns and clears all accumulated log messages.
func (ctx *CallContext) drainLogs() []LogMessage {
	logs := ctx.logs
	ctx.logs = nil
	return logs
}

// response is one dispatched call, ready to be written on any transport.
type response struct {
	schema *arrow.Schema
	logs   []LogMessage
	result arrow.RecordBatch // nil when err is set
	err    error
}

func (r *response) release() {
	if r.result != nil {
		r.result.Release()
	}
}

func errorResponse(schema *arrow.Schema, err error) *response {
	if schema == nil {
		schema = arrow.NewSchema(nil, nil)
	}
	return &response{schema: schema, err: err}
}

// dispatch runs one request through hooks and the method handler. The
// returned response is transport independent; stdio and HTTP both write it
// with writeResponse.
func (s *Server) dispatch(ctx context.Context, req *Request) *response {
	if req.Method == describeMethod {
		return s.describeResponse()
	}

	info, ok := s.methods[req.Method]
	if !ok {
		return errorResponse(nil, &RpcError{
			Type:    "AttributeError",
			Message: fmt.Sprintf("Unknown method: '%s'. Available methods: %v", req.Method, s.availableMethods()),
		})
	}

	dispatchInfo := DispatchInfo{
		Method:            req.Method,
		MethodType:        DispatchMethodUnary,
		ServerID:          s.serverID,
		RequestID:         req.RequestID,
		TransportMetadata: req.Metadata,
	}
	stats := &CallStatistics{}

	var token HookToken
	hookActive := false
	if s.dispatchHook != nil {
		runHook(s.logger, "start", func() {
			hookCtx, t := s.dispatchHook.OnDispatchStart(ctx, dispatchInfo)
			if hookCtx != nil {
				ctx = hookCtx
			}
			token = t
			hookActive = true
		})
	}

	resp := s.invoke(ctx, req, info, stats)

	if hookActive {
		runHook(s.logger, "end", func() {
			s.dispatchHook.OnDispatchEnd(ctx, token, dispatchInfo, stats, resp.err)
		})
	}
	return resp
}

func (s *Server) invoke(ctx context.Context, req *Request, info *methodInfo, stats *CallStatistics) (resp *response) {
	stats.RecordInput(req.Batch)

	callCtx := &CallContext{
		Ctx:       ctx,
		RequestID: req.RequestID,
		ServerID:  s.serverID,
		Method:    req.Method,
		LogLevel:  LogLevel(req.LogLevel),
	}
	if callCtx.LogLevel == "" {
		callCtx.LogLevel = LogTrace // default: allow all, client filters
	}

	defer func() {
		if rv := recover(); rv != nil {
			resp = errorResponse(info.ResultSchema, &RpcError{Type: "RuntimeError", Message: fmt.Sprintf("panic: %v", rv)})
			resp.logs = callCtx.drainLogs()
		}
	}()

	result, err := info.invoke(ctx, callCtx, req.Batch)
	logs := callCtx.drainLogs()
	if err != nil {
		resp = errorResponse(info.ResultSchema, err)
		resp.logs = logs
		return resp
	}
	stats.RecordOutput(result)
	return &response{schema: info.ResultSchema, logs: logs, result: result}
}
