// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// BatchKind classifies a received batch based on its metadata.
type BatchKind int

const (
	BatchData  BatchKind = iota // regular data batch
	BatchLog                    // client-directed log batch
	BatchError                  // error/exception batch
)

// classifyBatch reads the log level key: EXCEPTION marks an error, any
// other level a log message, and its absence a data batch.
func classifyBatch(meta arrow.Metadata) BatchKind {
	level, ok := meta.GetValue(MetaLogLevel)
	switch {
	case !ok:
		return BatchData
	case LogLevel(level) == LogException:
		return BatchError
	}
	return BatchLog
}

func batchMetadata(batch arrow.RecordBatch) arrow.Metadata {
	if rb, ok := batch.(arrow.RecordBatchWithMetadata); ok {
		return rb.Metadata()
	}
	return arrow.Metadata{}
}

// Request represents a parsed RPC request from the wire.
type Request struct {
	Method    string
	Version   string
	RequestID string
	LogLevel  string
	Batch     arrow.RecordBatch
	Metadata  map[string]string
}

// ReadRequest reads one complete IPC stream from the reader and extracts
// the method name, version, and parameter values from the first batch.
func ReadRequest(r io.Reader) (*Request, error) {
	reader, err := ipc.NewReader(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading request IPC stream: %w", err)
	}
	defer reader.Release()

	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return nil, fmt.Errorf("reading request batch: %w", err)
		}
		return nil, io.EOF
	}

	batch := reader.RecordBatch()
	batch.Retain() // keep batch alive after reader is released

	// Drain remaining batches (read to EOS) so the next request starts clean.
	for reader.Next() {
	}

	meta := batchMetadata(batch)

	method, ok := meta.GetValue(MetaMethod)
	if !ok {
		batch.Release()
		return nil, &RpcError{
			Type:    "ProtocolError",
			Message: "Missing 'vgi_rpc.method' in request batch custom_metadata",
		}
	}

	version, ok := meta.GetValue(MetaRequestVersion)
	if !ok {
		batch.Release()
		return nil, &RpcError{
			Type:    "VersionError",
			Message: "Missing 'vgi_rpc.request_version' in request batch custom_metadata",
		}
	}
	if version != ProtocolVersion {
		batch.Release()
		return nil, &RpcError{
			Type:    "VersionError",
			Message: fmt.Sprintf("Unsupported request version %q, expected %q", version, ProtocolVersion),
		}
	}

	if batch.Schema().NumFields() > 0 && batch.NumRows() != 1 {
		batch.Release()
		return nil, &RpcError{
			Type:    "ProtocolError",
			Message: fmt.Sprintf("Expected 1 row in request batch, got %d", batch.NumRows()),
		}
	}

	requestID, _ := meta.GetValue(MetaRequestID)
	logLevel, _ := meta.GetValue(MetaLogLevel)

	metaMap := make(map[string]string, meta.Len())
	for i := range meta.Len() {
		metaMap[meta.Keys()[i]] = meta.Values()[i]
	}

	return &Request{
		Method:    method,
		Version:   version,
		RequestID: requestID,
		LogLevel:  logLevel,
		Batch:     batch,
		Metadata:  metaMap,
	}, nil
}

// WriteRequest writes params as a one-batch request stream for method.
// extra is added to the batch custom metadata (request ID, log level,
// trace context).
func WriteRequest(w io.Writer, method string, params arrow.RecordBatch, extra map[string]string) error {
	keys := []string{MetaMethod, MetaRequestVersion}
	vals := []string{method, ProtocolVersion}
	for _, k := range sortedKeys(extra) {
		keys = append(keys, k)
		vals = append(vals, extra[k])
	}

	schema := params.Schema()
	batch := array.NewRecordBatchWithMetadata(schema, params.Columns(), params.NumRows(), arrow.NewMetadata(keys, vals))
	defer batch.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema))
	if err := writer.Write(batch); err != nil {
		writer.Close()
		return fmt.Errorf("writing request batch: %w", err)
	}
	return writer.Close()
}

// Response is one decoded response stream.
type Response struct {
	// Batch is the result batch; zero rows for void methods.
	Batch arrow.RecordBatch
	// Logs are the log batches that preceded the result, in order.
	Logs []LogMessage
	// ServerID is the server identifier from response metadata, if any.
	ServerID string
}

// Release frees the result batch.
func (r *Response) Release() {
	if r != nil && r.Batch != nil {
		r.Batch.Release()
	}
}

// ReadResponse reads one response stream. When the server reports an
// exception the returned error is an *RpcError and the Response still
// carries the logs that preceded it.
func ReadResponse(r io.Reader) (*Response, error) {
	reader, err := ipc.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response stream: %v", ErrProtocol, err)
	}
	defer reader.Release()

	resp := &Response{}
	var rpcErr *RpcError
	for reader.Next() {
		batch := reader.RecordBatch()
		meta := batchMetadata(batch)
		if id, ok := meta.GetValue(MetaServerID); ok {
			resp.ServerID = id
		}
		switch classifyBatch(meta) {
		case BatchLog:
			resp.Logs = append(resp.Logs, logFromMetadata(meta))
		case BatchError:
			msg, _ := meta.GetValue(MetaLogMessage)
			extra, _ := meta.GetValue(MetaLogExtra)
			requestID, _ := meta.GetValue(MetaRequestID)
			rpcErr = parseErrorExtra(msg, extra, requestID)
		default:
			if resp.Batch != nil {
				resp.Batch.Release()
			}
			batch.Retain()
			resp.Batch = batch
		}
	}
	if err := reader.Err(); err != nil {
		resp.Release()
		return nil, fmt.Errorf("%w: reading response batch: %v", ErrProtocol, err)
	}
	if rpcErr != nil {
		resp.Release()
		resp.Batch = nil
		return resp, rpcErr
	}
	if resp.Batch == nil {
		return nil, fmt.Errorf("%w: response carried no result batch", ErrProtocol)
	}
	return resp, nil
}

func logFromMetadata(meta arrow.Metadata) LogMessage {
	level, _ := meta.GetValue(MetaLogLevel)
	msg, _ := meta.GetValue(MetaLogMessage)
	out := LogMessage{Level: LogLevel(level), Message: msg}
	if extra, ok := meta.GetValue(MetaLogExtra); ok && extra != "" {
		_ = json.Unmarshal([]byte(extra), &out.Extras)
	}
	return out
}

// emptyBatch creates a zero-row batch with the given schema.
func emptyBatch(schema *arrow.Schema) arrow.RecordBatch {
	mem := memory.NewGoAllocator()
	cols := make([]arrow.Array, schema.NumFields())
	for i, f := range schema.Fields() {
		cols[i] = makeEmptyArray(mem, f.Type)
	}
	batch := array.NewRecordBatch(schema, cols, 0)
	for _, c := range cols {
		c.Release()
	}
	return batch
}

// makeEmptyArray creates a zero-length array of the given type.
func makeEmptyArray(mem memory.Allocator, dt arrow.DataType) arrow.Array {
	builder := array.NewBuilder(mem, dt)
	defer builder.Release()
	return builder.NewArray()
}

// writeMetaBatch writes a zero-row batch carrying only metadata.
func writeMetaBatch(w *ipc.Writer, schema *arrow.Schema, keys, vals []string, serverID, requestID string) error {
	if serverID != "" {
		keys = append(keys, MetaServerID)
		vals = append(vals, serverID)
	}
	if requestID != "" {
		keys = append(keys, MetaRequestID)
		vals = append(vals, requestID)
	}

	batch := emptyBatch(schema)
	defer batch.Release()

	batchWithMeta := array.NewRecordBatchWithMetadata(schema, batch.Columns(), 0, arrow.NewMetadata(keys, vals))
	defer batchWithMeta.Release()

	return w.Write(batchWithMeta)
}

// writeLogBatch writes a zero-row batch with log metadata.
func writeLogBatch(w *ipc.Writer, schema *arrow.Schema, msg LogMessage, serverID, requestID string) error {
	keys := []string{MetaLogLevel, MetaLogMessage}
	vals := []string{string(msg.Level), msg.Message}

	if len(msg.Extras) > 0 {
		extraJSON, err := json.Marshal(msg.Extras)
		if err != nil {
			extraJSON = []byte(`{}`)
		}
		keys = append(keys, MetaLogExtra)
		vals = append(vals, string(extraJSON))
	}
	return writeMetaBatch(w, schema, keys, vals, serverID, requestID)
}

// writeErrorBatch writes a zero-row batch with EXCEPTION-level metadata.
func writeErrorBatch(w *ipc.Writer, schema *arrow.Schema, err error, serverID, requestID string, debug bool) error {
	keys := []string{MetaLogLevel, MetaLogMessage, MetaLogExtra}
	vals := []string{string(LogException), errorMessage(err), buildErrorExtra(err, debug)}
	return writeMetaBatch(w, schema, keys, vals, serverID, requestID)
}

// WriteErrorResponse writes a complete IPC stream containing just an error batch.
func WriteErrorResponse(w io.Writer, schema *arrow.Schema, err error, serverID, requestID string) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(schema))
	if werr := writeErrorBatch(writer, schema, err, serverID, requestID, false); werr != nil {
		writer.Close()
		return werr
	}
	return writer.Close()
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
