// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

import "fmt"

// Function is one declared DLL export.
type Function struct {
	Name       string
	Params     []Param
	Constraint *Constraint
}

// Since restricts the function to IxChariot v and later.
func (f *Function) Since(parts ...int) *Function {
	f.Constraint = &Constraint{Op: Since, Version: V(parts...)}
	return f
}

// Until restricts the function to IxChariot v and earlier.
func (f *Function) Until(parts ...int) *Function {
	f.Constraint = &Constraint{Op: Until, Version: V(parts...)}
	return f
}

// Inputs returns the descriptors that consume a caller argument.
func (f *Function) Inputs() []Param {
	var in []Param
	for _, p := range f.Params {
		if p.consumes() {
			in = append(in, p)
		}
	}
	return in
}

// Outputs returns the descriptors that produce a result value.
func (f *Function) Outputs() []Param {
	var out []Param
	for _, p := range f.Params {
		if p.produces() {
			out = append(out, p)
		}
	}
	return out
}

// Table is an ordered set of declared functions. It is populated once
// during construction and read-only afterwards.
type Table struct {
	// Version identifies the table revision; a bridge worker whose table is
	// older than the client's is refused.
	Version Version
	funcs   map[string]*Function
	order   []string
}

// NewTable returns an empty table at the given revision.
func NewTable(version Version) *Table {
	return &Table{Version: version, funcs: make(map[string]*Function)}
}

// Define adds a function. Duplicate names panic.
func (t *Table) Define(name string, descs ...Descriptor) *Function {
	if _, dup := t.funcs[name]; dup {
		panic(fmt.Sprintf("chrapi: function %q defined twice", name))
	}
	f := &Function{Name: name, Params: Params(descs...)}
	t.funcs[name] = f
	t.order = append(t.order, name)
	return f
}

// Lookup returns the named function.
func (t *Table) Lookup(name string) (*Function, bool) {
	f, ok := t.funcs[name]
	return f, ok
}

// Functions returns all functions in definition order.
func (t *Table) Functions() []*Function {
	out := make([]*Function, len(t.order))
	for i, name := range t.order {
		out[i] = t.funcs[name]
	}
	return out
}

// Expected reports whether a library at version lib should export name.
// Unknown names, unknown versions and unconstrained functions are all
// expected.
func (t *Table) Expected(name string, lib Version) bool {
	if len(lib) == 0 {
		return true
	}
	f, ok := t.funcs[name]
	if !ok || f.Constraint == nil {
		return true
	}
	return f.Constraint.Allows(lib)
}
