// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Library is a loaded ChrApi.dll, or a stand-in for one.
type Library interface {
	// Name identifies the library in log messages, usually its path.
	Name() string
	// Lookup resolves an exported symbol.
	Lookup(symbol string) (Proc, error)
	Close() error
}

// Proc is a resolved native function.
type Proc interface {
	Call(args []Arg) (ReturnCode, error)
}

// Result is the outcome of one native call.
type Result struct {
	Code    ReturnCode
	Outputs []any
}

// OK reports whether Code is CHR_OK.
func (r Result) OK() bool { return r.Code == OK }

// Value collapses Outputs: nil when empty, the bare value when there is
// one, otherwise the slice itself.
func (r Result) Value() any {
	switch len(r.Outputs) {
	case 0:
		return nil
	case 1:
		return r.Outputs[0]
	}
	return r.Outputs
}

// Binding dispatches calls by name to a Library using a Table's
// signatures. After Bind it is read-only and safe for concurrent use as
// far as the underlying library is.
type Binding struct {
	lib     Library
	table   *Table
	version Version
	codec   *Codec
	logger  *slog.Logger
	procs   map[string]Proc
}

// Option configures Bind.
type Option func(*Binding)

// WithVersion sets the installed IxChariot version used for gating.
func WithVersion(v Version) Option {
	return func(b *Binding) { b.version = v }
}

// WithCodec sets the string codec. The default is UTF8.
func WithCodec(c *Codec) Option {
	return func(b *Binding) { b.codec = c }
}

// WithLogger sets the logger used for missing-symbol reports.
func WithLogger(l *slog.Logger) Option {
	return func(b *Binding) { b.logger = l }
}

// Bind resolves every function in table against lib. A missing symbol is
// logged only when the installed version is expected to provide it; it is
// never fatal.
func Bind(lib Library, table *Table, opts ...Option) *Binding {
	b := &Binding{
		lib:    lib,
		table:  table,
		codec:  UTF8,
		logger: slog.Default(),
		procs:  make(map[string]Proc),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, f := range table.Functions() {
		proc, err := lib.Lookup(f.Name)
		if err != nil {
			if table.Expected(f.Name, b.version) {
				b.logger.Error(fmt.Sprintf("%s have no function: %s", lib.Name(), f.Name), "err", err)
			}
			continue
		}
		b.procs[f.Name] = proc
	}
	return b
}

// Table returns the bound table.
func (b *Binding) Table() *Table { return b.table }

// Version returns the installed version the binding was gated against.
func (b *Binding) Version() Version { return b.version }

// Codec returns the string codec.
func (b *Binding) Codec() *Codec { return b.codec }

// LibraryName returns the underlying library's name.
func (b *Binding) LibraryName() string { return b.lib.Name() }

// Has reports whether name resolved to a native symbol.
func (b *Binding) Has(name string) bool {
	_, ok := b.procs[name]
	return ok
}

// Available lists the resolved symbols in sorted order.
func (b *Binding) Available() []string {
	names := make([]string, 0, len(b.procs))
	for name := range b.procs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call marshals args according to name's signature, invokes the native
// function and decodes its outputs. A non-OK return code is not an error;
// errors are reserved for marshaling failures and missing functions.
func (b *Binding) Call(ctx context.Context, name string, args ...any) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	f, ok := b.table.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoSuchFunction, name)
	}
	proc, ok := b.procs[name]
	if !ok {
		if f.Constraint != nil && !b.table.Expected(name, b.version) {
			return Result{}, &UnsupportedError{Name: name, Constraint: *f.Constraint, Version: b.version}
		}
		return Result{}, fmt.Errorf("%w: %s has no function %s", ErrNoSuchFunction, b.lib.Name(), name)
	}
	frame, err := NewFrame(b.codec, f.Params, args)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}
	rc, err := proc.Call(frame.Args)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}
	outs, err := frame.Outputs(b.codec)
	if err != nil {
		return Result{Code: rc}, fmt.Errorf("%s: %w", name, err)
	}
	return Result{Code: rc, Outputs: outs}, nil
}

// Close releases the library.
func (b *Binding) Close() error {
	return b.lib.Close()
}
