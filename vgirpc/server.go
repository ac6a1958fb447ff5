// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"sort"
	"strings"
	"syscall"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
)

// invokeFunc decodes a parameter batch, runs the handler and encodes its result.
type invokeFunc func(ctx context.Context, callCtx *CallContext, params arrow.RecordBatch) (arrow.RecordBatch, error)

// methodInfo stores the registration details for one RPC method.
type methodInfo struct {
	Name          string
	Doc           string
	HasReturn     bool
	ParamsSchema  *arrow.Schema     // Arrow schema for parameter deserialization
	ResultSchema  *arrow.Schema     // Arrow schema for result serialization
	ParamDefaults map[string]string // parameter defaults from struct tags
	invoke        invokeFunc
}

// Server is the RPC server that dispatches incoming requests to registered methods.
type Server struct {
	methods      map[string]*methodInfo
	serverID     string
	serviceName  string
	dispatchHook DispatchHook
	debugErrors  bool
	logger       *slog.Logger
}

// NewServer creates a new RPC server.
func NewServer() *Server {
	return &Server{
		methods: make(map[string]*methodInfo),
		logger:  slog.Default(),
	}
}

// SetServerID sets a server identifier included in response metadata.
func (s *Server) SetServerID(id string) {
	s.serverID = id
}

// SetServiceName sets a logical service name used by observability hooks.
func (s *Server) SetServiceName(name string) {
	s.serviceName = name
}

// ServiceName returns the logical service name, or empty string if not set.
func (s *Server) ServiceName() string {
	return s.serviceName
}

// SetDispatchHook registers a hook that is called around each RPC dispatch.
func (s *Server) SetDispatchHook(hook DispatchHook) {
	s.dispatchHook = hook
}

// SetLogger replaces the logger used for transport failures. The default is
// slog.Default().
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetDebugErrors controls whether error responses include stack traces with
// file paths and function names. When false (the default), error responses
// contain only the error type and message.
func (s *Server) SetDebugErrors(enabled bool) {
	s.debugErrors = enabled
}

// SetDoc attaches a description to a registered method. It is returned in
// the doc column of __describe__.
func (s *Server) SetDoc(method, doc string) {
	if info, ok := s.methods[method]; ok {
		info.Doc = doc
	}
}

// Methods returns the registered method names, sorted.
func (s *Server) Methods() []string {
	return s.availableMethods()
}

// Unary registers a unary RPC method with typed parameters and return value.
// P must be a struct with `vgirpc` tags. R is the return type.
func Unary[P any, R any](s *Server, name string, handler func(context.Context, *CallContext, P) (R, error)) {
	paramsType := reflect.TypeFor[P]()
	fields, paramsSchema := mustParams(name, paramsType)
	resultSchema, err := resultSchema(reflect.TypeFor[R]())
	if err != nil {
		panic(fmt.Sprintf("vgirpc: registering %q: invalid result type: %v", name, err))
	}

	s.register(&methodInfo{
		Name:          name,
		HasReturn:     true,
		ParamsSchema:  paramsSchema,
		ResultSchema:  resultSchema,
		ParamDefaults: extractDefaults(fields),
		invoke: func(ctx context.Context, callCtx *CallContext, batch arrow.RecordBatch) (arrow.RecordBatch, error) {
			p, err := decodeParams[P](batch, paramsType, fields)
			if err != nil {
				return nil, err
			}
			r, err := handler(ctx, callCtx, p)
			if err != nil {
				return nil, err
			}
			out, err := serializeResult(resultSchema, reflect.ValueOf(&r).Elem())
			if err != nil {
				return nil, &RpcError{Type: "SerializationError", Message: fmt.Sprintf("result serialization: %v", err)}
			}
			return out, nil
		},
	})
}

// UnaryVoid registers a unary RPC method that returns no value.
func UnaryVoid[P any](s *Server, name string, handler func(context.Context, *CallContext, P) error) {
	paramsType := reflect.TypeFor[P]()
	fields, paramsSchema := mustParams(name, paramsType)
	empty := arrow.NewSchema(nil, nil)

	s.register(&methodInfo{
		Name:          name,
		ParamsSchema:  paramsSchema,
		ResultSchema:  empty,
		ParamDefaults: extractDefaults(fields),
		invoke: func(ctx context.Context, callCtx *CallContext, batch arrow.RecordBatch) (arrow.RecordBatch, error) {
			p, err := decodeParams[P](batch, paramsType, fields)
			if err != nil {
				return nil, err
			}
			if err := handler(ctx, callCtx, p); err != nil {
				return nil, err
			}
			return emptyBatch(empty), nil
		},
	})
}

// UnaryRow registers a unary method whose schemas are only known at runtime.
// The handler receives one Go value per params column (nil for null) and
// returns one value per result column.
func UnaryRow(s *Server, name string, paramsSchema, resultSchema *arrow.Schema,
	handler func(context.Context, *CallContext, []any) ([]any, error)) {
	if paramsSchema == nil || resultSchema == nil {
		panic(fmt.Sprintf("vgirpc: registering %q: schemas must not be nil", name))
	}

	s.register(&methodInfo{
		Name:         name,
		HasReturn:    resultSchema.NumFields() > 0,
		ParamsSchema: paramsSchema,
		ResultSchema: resultSchema,
		invoke: func(ctx context.Context, callCtx *CallContext, batch arrow.RecordBatch) (arrow.RecordBatch, error) {
			args, err := RowValues(batch, paramsSchema)
			if err != nil {
				return nil, &RpcError{Type: "TypeError", Message: fmt.Sprintf("parameter deserialization: %v", err)}
			}
			outs, err := handler(ctx, callCtx, args)
			if err != nil {
				return nil, err
			}
			out, err := BuildRow(resultSchema, outs)
			if err != nil {
				return nil, &RpcError{Type: "SerializationError", Message: fmt.Sprintf("result serialization: %v", err)}
			}
			return out, nil
		},
	})
}

func (s *Server) register(info *methodInfo) {
	if info.Name == describeMethod {
		panic(fmt.Sprintf("vgirpc: %q is reserved", describeMethod))
	}
	s.methods[info.Name] = info
}

func mustParams(name string, t reflect.Type) ([]field, *arrow.Schema) {
	fields, err := structFields(t)
	if err != nil {
		panic(fmt.Sprintf("vgirpc: registering %q: invalid params type %v: %v", name, t, err))
	}
	return fields, fieldsSchema(fields)
}

func decodeParams[P any](batch arrow.RecordBatch, t reflect.Type, fields []field) (P, error) {
	var zero P
	v, err := decodeStruct(batch, t, fields)
	if err != nil {
		return zero, &RpcError{Type: "TypeError", Message: fmt.Sprintf("parameter deserialization: %v", err)}
	}
	if t.Kind() == reflect.Pointer {
		v = v.Addr()
	}
	return v.Interface().(P), nil
}

// RunStdio runs the server loop reading from stdin and writing to stdout.
// If stdin or stdout is connected to a terminal, a warning is printed to
// stderr.
func (s *Server) RunStdio() {
	// Ignore SIGPIPE so writes to a closed stdout return errors instead of
	// killing the process.
	signal.Ignore(syscall.SIGPIPE)

	if isTerminal(os.Stdin) || isTerminal(os.Stdout) {
		fmt.Fprintln(os.Stderr,
			"WARNING: This process communicates via Arrow IPC on stdin/stdout "+
				"and is not intended to be run interactively.\n"+
				"It should be launched as a subprocess by an RPC client.")
	}
	s.Serve(os.Stdin, os.Stdout)
}

// isTerminal reports whether f is connected to a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Serve runs the server loop on the given reader/writer pair.
func (s *Server) Serve(r io.Reader, w io.Writer) {
	s.ServeWithContext(context.Background(), r, w)
}

// ServeWithContext runs the server loop on the given reader/writer pair with
// a context. It returns when r reaches EOF or the transport fails.
func (s *Server) ServeWithContext(ctx context.Context, r io.Reader, w io.Writer) {
	for {
		err := s.serveOne(ctx, r, w)
		if err != nil {
			if err == io.EOF {
				return
			}
			if !isTransportClosed(err) {
				s.logger.Error("serve loop error", "err", err)
			}
			return
		}
	}
}

// serveOne handles one complete RPC request-response cycle.
func (s *Server) serveOne(ctx context.Context, r io.Reader, w io.Writer) error {
	req, err := ReadRequest(r)
	if err != nil {
		if err == io.EOF {
			return io.EOF
		}
		if rpcErr, ok := err.(*RpcError); ok {
			_ = s.writeResponse(w, errorResponse(nil, rpcErr), "")
			return nil // continue serving
		}
		return err // transport error, stop serving
	}
	defer req.Batch.Release()

	resp := s.dispatch(ctx, req)
	defer resp.release()
	return s.writeResponse(w, resp, req.RequestID)
}

// writeResponse writes resp as one IPC stream: log batches, then either the
// result batch or an EXCEPTION batch.
func (s *Server) writeResponse(w io.Writer, resp *response, requestID string) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(resp.schema))
	for _, logMsg := range resp.logs {
		if err := writeLogBatch(writer, resp.schema, logMsg, s.serverID, requestID); err != nil {
			writer.Close()
			return fmt.Errorf("writing log batch: %w", err)
		}
	}
	var err error
	if resp.err != nil {
		err = writeErrorBatch(writer, resp.schema, resp.err, s.serverID, requestID, s.debugErrors)
	} else {
		err = writer.Write(resp.result)
	}
	if err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

// extractDefaults collects the tag defaults of fields by wire name.
func extractDefaults(fields []field) map[string]string {
	defaults := make(map[string]string)
	for _, f := range fields {
		if f.tag.Default != nil {
			defaults[f.tag.Name] = *f.tag.Default
		}
	}
	if len(defaults) == 0 {
		return nil
	}
	return defaults
}

// isTransportClosed returns true for errors that indicate the transport was closed normally.
func isTransportClosed(err error) bool {
	if err == io.EOF {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "file already closed") ||
		strings.Contains(msg, "EOF")
}

func (s *Server) availableMethods() []string {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
