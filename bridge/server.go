// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/vgirpc"
)

// ProtocolVersion changes whenever the method schemas change shape.
const ProtocolVersion = 1

const (
	handshakeMethod = "handshake"
	functionsMethod = "functions"
)

// Info describes a worker. It is the handshake result.
type Info struct {
	Protocol       int32  `arrow:"protocol"`
	TableVersion   string `arrow:"table_version"`
	Encoding       string `arrow:"encoding"`
	Library        string `arrow:"library"`
	LibraryVersion string `arrow:"library_version"`
	Arch           string `arrow:"arch"`
}

func (Info) ArrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "protocol", Type: arrow.PrimitiveTypes.Int32},
		{Name: "table_version", Type: arrow.BinaryTypes.String},
		{Name: "encoding", Type: arrow.BinaryTypes.String},
		{Name: "library", Type: arrow.BinaryTypes.String},
		{Name: "library_version", Type: arrow.BinaryTypes.String},
		{Name: "arch", Type: arrow.BinaryTypes.String},
	}, nil)
}

type handshakeParams struct {
	Protocol int32  `vgirpc:"protocol"`
	Client   string `vgirpc:"client,default=unknown"`
}

type noParams struct{}

// Register exposes every function b resolved as a unary method named after
// its symbol, plus handshake and functions.
func Register(s *vgirpc.Server, b *chrapi.Binding) {
	for _, f := range b.Table().Functions() {
		if !b.Has(f.Name) {
			continue
		}
		vgirpc.UnaryRow(s, f.Name, ParamsSchema(f), ResultSchema(f), callHandler(b, f))
		s.SetDoc(f.Name, signature(f))
	}

	vgirpc.Unary(s, handshakeMethod, func(_ context.Context, cc *vgirpc.CallContext, p handshakeParams) (Info, error) {
		cc.ClientLog(vgirpc.LogDebug, "handshake",
			vgirpc.KV{Key: "client", Value: p.Client},
			vgirpc.KV{Key: "library", Value: b.LibraryName()})
		return workerInfo(b), nil
	})
	s.SetDoc(handshakeMethod, "reports the protocol, table revision, codec and DLL of this worker")

	vgirpc.Unary(s, functionsMethod, func(context.Context, *vgirpc.CallContext, noParams) ([]string, error) {
		return b.Available(), nil
	})
	s.SetDoc(functionsMethod, "lists the symbols resolved in the loaded DLL")
}

func workerInfo(b *chrapi.Binding) Info {
	return Info{
		Protocol:       ProtocolVersion,
		TableVersion:   b.Table().Version.String(),
		Encoding:       b.Codec().Name(),
		Library:        b.LibraryName(),
		LibraryVersion: b.Version().String(),
		Arch:           runtime.GOARCH,
	}
}

func callHandler(b *chrapi.Binding, f *chrapi.Function) func(context.Context, *vgirpc.CallContext, []any) ([]any, error) {
	return func(ctx context.Context, cc *vgirpc.CallContext, args []any) ([]any, error) {
		res, err := b.Call(ctx, f.Name, args...)
		if err != nil {
			return nil, rpcError(err)
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("chrapi.rc", int(res.Code)))
		cc.ClientLog(vgirpc.LogDebug, "native call", vgirpc.KV{Key: "rc", Value: res.Code.String()})
		row := make([]any, 0, len(res.Outputs)+1)
		row = append(row, int32(res.Code))
		return append(row, res.Outputs...), nil
	}
}

// rpcError names marshaling failures so the caller can map them back.
func rpcError(err error) error {
	typ := ""
	switch {
	case errors.Is(err, chrapi.ErrValueRange), errors.Is(err, chrapi.ErrStringTooLong):
		typ = "ValueError"
	case errors.Is(err, chrapi.ErrArgCount), errors.Is(err, chrapi.ErrArgType):
		typ = "TypeError"
	case errors.Is(err, chrapi.ErrEncoding):
		typ = "UnicodeError"
	default:
		return err
	}
	return &vgirpc.RpcError{Type: typ, Message: err.Error()}
}

// NewServer returns a vgirpc server exposing b.
func NewServer(b *chrapi.Binding, logger *slog.Logger) *vgirpc.Server {
	s := vgirpc.NewServer()
	s.SetServiceName(WorkerName)
	s.SetServerID(uuid.NewString()[:8])
	if logger != nil {
		s.SetLogger(logger)
	}
	Register(s, b)
	return s
}
