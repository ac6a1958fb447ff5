// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package vgirpc implements both ends of the vgi_rpc protocol, an Apache
// Arrow IPC-based RPC framework, restricted to unary calls.
//
// Parameters and results are encoded as Arrow RecordBatch messages with
// per-batch custom metadata carrying method names, request IDs, log
// messages, and error information. Each request is one IPC stream holding a
// single one-row batch; each response is one IPC stream of zero or more log
// batches followed by either a result batch or an EXCEPTION batch.
//
// # Methods
//
// [Unary] and [UnaryVoid] register handlers over Go structs. [UnaryRow]
// registers a handler over schemas built at runtime, taking and returning
// one Go value per column; the chariot bridge uses it to expose each DLL
// export as a method.
//
// # Struct tags
//
// Method parameters are declared as Go structs annotated with `vgirpc`
// struct tags:
//
//	`vgirpc:"wire_name[,option[,option...]]"`
//
// Supported options:
//
//   - default=VALUE  default value when the client omits the parameter
//   - int32          use Arrow Int32 instead of the default Int64
//   - float32        use Arrow Float32 instead of the default Float64
//   - binary         serialize an [ArrowSerializable] value as IPC bytes
//
// Pointer fields (e.g. *string, *int64) become nullable Arrow columns.
// Types that implement [ArrowSerializable] map their fields by `arrow`
// struct tag and travel as a binary column holding an embedded IPC stream.
//
// # Transports
//
// The stdio transport ([Server.RunStdio], [Server.Serve] and
// [StdioTransport]) exchanges IPC streams over a pipe pair, one request at a
// time. [HttpServer] and [HTTPTransport] carry the same streams as
//
//	POST /vgi/{method}
//
// with Content-Type application/vnd.apache.arrow.stream, optionally zstd
// compressed. GET /vgi renders an HTML summary of the registered methods.
//
// [Client] re-emits log batches through log/slog and injects W3C trace
// context into request metadata.
package vgirpc
