// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// DispatchMethodUnary is the only DispatchInfo.MethodType this server emits.
const DispatchMethodUnary = "unary"

// DispatchHook provides observability callpoints around RPC dispatch.
// Implementations must be safe for concurrent use (HTTP transport is concurrent).
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by OnDispatchStart and passed back to
// OnDispatchEnd. Only meaningful to the DispatchHook that created it.
type HookToken any

// DispatchInfo carries method metadata passed to hooks.
type DispatchInfo struct {
	Method            string            // RPC method name
	MethodType        string            // always DispatchMethodUnary
	ServerID          string            // Server identifier
	RequestID         string            // Client-supplied request identifier
	TransportMetadata map[string]string // IPC custom metadata, plus remote_addr and user_agent over HTTP
}

// CallStatistics holds per-call I/O counters.
type CallStatistics struct {
	InputBatches  int64
	OutputBatches int64
	InputRows     int64
	OutputRows    int64
	InputBytes    int64
	OutputBytes   int64
}

// RecordInput records one input batch.
func (s *CallStatistics) RecordInput(batch arrow.RecordBatch) {
	s.InputBatches++
	s.InputRows += batch.NumRows()
	s.InputBytes += batchBufferSize(batch)
}

// RecordOutput records one output batch.
func (s *CallStatistics) RecordOutput(batch arrow.RecordBatch) {
	s.OutputBatches++
	s.OutputRows += batch.NumRows()
	s.OutputBytes += batchBufferSize(batch)
}

// batchBufferSize sums the top-level buffer sizes of every column.
func batchBufferSize(batch arrow.RecordBatch) int64 {
	var total int64
	for _, col := range batch.Columns() {
		for _, buf := range col.Data().Buffers() {
			if buf != nil {
				total += int64(buf.Len())
			}
		}
	}
	return total
}

// runHook calls fn and logs instead of propagating a panic.
func runHook(logger interface{ Error(string, ...any) }, what string, fn func()) {
	defer func() {
		if rv := recover(); rv != nil {
			logger.Error("dispatch hook "+what+" panic", "err", rv)
		}
	}()
	fn()
}
