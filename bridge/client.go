// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/Query-farm/vgi-chariot/chrapi"
	"github.com/Query-farm/vgi-chariot/vgirpc"
)

var (
	// ErrVersionMismatch is returned when a worker's protocol, table revision
	// or codec does not match the caller's.
	ErrVersionMismatch = errors.New("bridge: worker version mismatch")
	// ErrWorkerNotFound is returned when no worker executable can be located.
	ErrWorkerNotFound = errors.New("bridge: worker executable not found")
)

// Caller forwards chrapi calls to a worker. Arguments are validated and
// strings encoded locally, so marshaling errors match an in-process
// Binding.
type Caller struct {
	client     *vgirpc.Client
	table      *chrapi.Table
	codec      *chrapi.Codec
	info       Info
	libVersion chrapi.Version
	available  map[string]bool
	names      []string
}

// Dial runs the handshake over client and fetches the worker's catalog.
// table.Version is the oldest table revision the caller accepts.
func Dial(ctx context.Context, client *vgirpc.Client, table *chrapi.Table, codec *chrapi.Codec) (*Caller, error) {
	if codec == nil {
		codec = chrapi.UTF8
	}
	info, err := vgirpc.Call[Info](ctx, client, handshakeMethod, handshakeParams{Protocol: ProtocolVersion, Client: "chariot"})
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if err := checkInfo(info, table, codec); err != nil {
		return nil, err
	}
	names, err := vgirpc.Call[[]string](ctx, client, functionsMethod, noParams{})
	if err != nil {
		return nil, fmt.Errorf("listing worker functions: %w", err)
	}

	c := &Caller{
		client:    client,
		table:     table,
		codec:     codec,
		info:      info,
		available: make(map[string]bool, len(names)),
		names:     names,
	}
	if v, err := chrapi.ParseVersion(info.LibraryVersion); err == nil {
		c.libVersion = v
	}
	for _, name := range names {
		c.available[name] = true
	}
	return c, nil
}

func checkInfo(info Info, table *chrapi.Table, codec *chrapi.Codec) error {
	if info.Protocol != ProtocolVersion {
		return fmt.Errorf("%w: protocol %d, want %d", ErrVersionMismatch, info.Protocol, ProtocolVersion)
	}
	tv, err := chrapi.ParseVersion(info.TableVersion)
	if err != nil {
		return fmt.Errorf("%w: table version %q: %v", ErrVersionMismatch, info.TableVersion, err)
	}
	if tv.Compare(table.Version) < 0 {
		return fmt.Errorf("%w: worker table %s is older than %s", ErrVersionMismatch, tv, table.Version)
	}
	if info.Encoding != codec.Name() {
		return fmt.Errorf("%w: worker encoding %s, want %s", ErrVersionMismatch, info.Encoding, codec.Name())
	}
	return nil
}

// Info returns the handshake result.
func (c *Caller) Info() Info { return c.info }

// Has reports whether the worker's DLL exports name.
func (c *Caller) Has(name string) bool { return c.available[name] }

// Available lists the worker's resolved symbols in sorted order.
func (c *Caller) Available() []string { return append([]string(nil), c.names...) }

// Call invokes name on the worker. Like chrapi.Binding.Call, a non-OK return
// code is not an error.
func (c *Caller) Call(ctx context.Context, name string, args ...any) (chrapi.Result, error) {
	f, ok := c.table.Lookup(name)
	if !ok {
		return chrapi.Result{}, fmt.Errorf("%w: %s", chrapi.ErrNoSuchFunction, name)
	}
	if !c.available[name] {
		if f.Constraint != nil && !c.table.Expected(name, c.libVersion) {
			return chrapi.Result{}, &chrapi.UnsupportedError{Name: name, Constraint: *f.Constraint, Version: c.libVersion}
		}
		return chrapi.Result{}, fmt.Errorf("%w: %s has no function %s", chrapi.ErrNoSuchFunction, c.info.Library, name)
	}
	if _, err := chrapi.NewFrame(c.codec, f.Params, args); err != nil {
		return chrapi.Result{}, fmt.Errorf("%s: %w", name, err)
	}

	in := f.Inputs()
	vals := make([]any, len(in))
	for i, p := range in {
		v, err := wireValue(c.codec, p, args[i])
		if err != nil {
			return chrapi.Result{}, fmt.Errorf("%s: argument %d: %w", name, i, err)
		}
		vals[i] = v
	}

	row, err := c.client.CallRow(ctx, name, ParamsSchema(f), vals)
	if err != nil {
		return chrapi.Result{}, err
	}
	return resultFromRow(name, row)
}

// resultFromRow splits a worker result row into its return code and outputs.
func resultFromRow(name string, row []any) (chrapi.Result, error) {
	if len(row) == 0 {
		return chrapi.Result{}, fmt.Errorf("%w: %s returned no columns", vgirpc.ErrProtocol, name)
	}
	rc, ok := row[0].(int32)
	if !ok {
		return chrapi.Result{}, fmt.Errorf("%w: %s returned rc of type %T", vgirpc.ErrProtocol, name, row[0])
	}
	res := chrapi.Result{Code: chrapi.ReturnCode(rc)}
	if len(row) > 1 {
		res.Outputs = row[1:]
	}
	return res, nil
}

// Close closes the RPC client. The worker process is owned by whoever
// started it.
func (c *Caller) Close() error {
	return c.client.Close()
}

// wireValue converts a validated argument to its column value.
func wireValue(codec *chrapi.Codec, p chrapi.Param, v any) (any, error) {
	if p.Kind == chrapi.Buffer {
		switch s := v.(type) {
		case []byte:
			return s, nil
		case string:
			return codec.Encode(s)
		case fmt.Stringer:
			return codec.Encode(s.String())
		}
		return nil, fmt.Errorf("%w: %T for string", chrapi.ErrArgType, v)
	}
	if b, ok := v.(bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return v, nil
}
