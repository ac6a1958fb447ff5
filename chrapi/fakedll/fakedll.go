// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package fakedll provides in-memory stand-ins for ChrApi.dll.
//
// [Library] is a programmable symbol table: register a Go function per
// export with [Library.Handle] and read or write the raw argument slots with
// the helpers in this package. [Chariot] builds on it with a small
// simulation of IxChariot's object model (tests, pairs, run options, timing
// records) that is enough to drive a full run without the vendor DLL.
package fakedll

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

// Func implements one export.
type Func func(args []chrapi.Arg) chrapi.ReturnCode

// Library is a chrapi.Library backed by Go functions.
type Library struct {
	name string

	mu     sync.Mutex
	funcs  map[string]Func
	calls  []string
	closed bool
}

// New returns an empty library reporting name.
func New(name string) *Library {
	return &Library{name: name, funcs: make(map[string]Func)}
}

// Handle registers fn as symbol.
func (l *Library) Handle(symbol string, fn Func) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.funcs[symbol] = fn
}

// Remove unregisters symbol so Lookup fails for it.
func (l *Library) Remove(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.funcs, symbol)
}

// Calls returns the symbols invoked so far, in order.
func (l *Library) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Closed reports whether Close was called.
func (l *Library) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Library) Name() string { return l.name }

func (l *Library) Lookup(symbol string) (chrapi.Proc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.funcs[symbol]; !ok {
		return nil, fmt.Errorf("procedure %s not found", symbol)
	}
	return proc{lib: l, symbol: symbol}, nil
}

func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

type proc struct {
	lib    *Library
	symbol string
}

func (p proc) Call(args []chrapi.Arg) (chrapi.ReturnCode, error) {
	p.lib.mu.Lock()
	fn, ok := p.lib.funcs[p.symbol]
	p.lib.calls = append(p.lib.calls, p.symbol)
	p.lib.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("procedure %s unloaded", p.symbol)
	}
	return fn(args), nil
}

// Word returns an immediate argument's raw bits.
func Word(a chrapi.Arg) uint64 { return a.Word }

// ULong reads an immediate unsigned long.
func ULong(a chrapi.Arg) uint32 { return uint32(a.Word) }

// Long reads an immediate signed long.
func Long(a chrapi.Arg) int32 { return int32(uint32(a.Word)) }

// Double reads an immediate double.
func Double(a chrapi.Arg) float64 { return math.Float64frombits(a.Word) }

// InString returns the bytes of a (chars, length) input pair.
func InString(chars, length chrapi.Arg) string {
	n := int(length.Word)
	if n > len(chars.Ptr) {
		n = len(chars.Ptr)
	}
	return string(chars.Ptr[:n])
}

// SetULong writes an unsigned long through a pointer slot.
func SetULong(a chrapi.Arg, v uint32) { binary.LittleEndian.PutUint32(a.Ptr, v) }

// SetUShort writes an unsigned short through a pointer slot.
func SetUShort(a chrapi.Arg, v uint16) { binary.LittleEndian.PutUint16(a.Ptr, v) }

// SetByte writes an unsigned char through a pointer slot.
func SetByte(a chrapi.Arg, v uint8) { a.Ptr[0] = v }

// SetDouble writes a double through a pointer slot.
func SetDouble(a chrapi.Arg, v float64) { binary.LittleEndian.PutUint64(a.Ptr, math.Float64bits(v)) }

// SetString fills a (buffer, maxLength, &length) output triple. It returns
// CHR_BUFFER_TOO_SMALL when s plus its NUL does not fit.
func SetString(buf, maxLen, rtnLen chrapi.Arg, s string) chrapi.ReturnCode {
	limit := int(maxLen.Word)
	if limit > len(buf.Ptr) {
		limit = len(buf.Ptr)
	}
	if len(s)+1 > limit {
		return chrapi.BufferTooSmall
	}
	n := copy(buf.Ptr, s)
	buf.Ptr[n] = 0
	binary.LittleEndian.PutUint32(rtnLen.Ptr, uint32(n))
	return chrapi.OK
}
