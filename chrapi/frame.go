// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// Arg is one native argument slot. It is either an immediate value or a
// pointer to Ptr[0].
type Arg struct {
	Word  uint64 // immediate bits, zero-extended
	Size  int    // immediate width in bytes
	Float bool   // Word holds IEEE-754 bits
	Ptr   []byte // non-nil for pointer arguments
}

// IsPointer reports whether the slot passes an address.
func (a Arg) IsPointer() bool { return a.Ptr != nil }

// Frame is the expanded argument vector for a single invocation. Output
// cells are owned by the frame and never reused across calls.
type Frame struct {
	Args []Arg
	outs []outSlot
}

type outSlot struct {
	p    Param
	cell []byte
}

// lengthSize is sizeof(CHR_LENGTH).
const lengthSize = 4

// NewFrame expands args against params. It consumes one value per input or
// in/out descriptor, in order.
func NewFrame(codec *Codec, params []Param, args []any) (*Frame, error) {
	want := 0
	for _, p := range params {
		if p.consumes() {
			want++
		}
	}
	if len(args) != want {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrArgCount, want, len(args))
	}
	f := &Frame{}
	next := 0
	for i, p := range params {
		var v any
		if p.consumes() {
			v = args[next]
			next++
		}
		if err := f.push(codec, p, v); err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, p, err)
		}
	}
	return f, nil
}

func (f *Frame) push(codec *Codec, p Param, v any) error {
	if p.Kind == Buffer {
		return f.pushBuffer(codec, p, v)
	}
	switch p.Dir {
	case In:
		word, err := toWord(p.Type, v)
		if err != nil {
			return err
		}
		f.Args = append(f.Args, Arg{Word: word, Size: p.Type.Size(), Float: p.Type.float()})
	case Out, InOut:
		cell := make([]byte, p.Type.Size())
		if p.Dir == InOut {
			word, err := toWord(p.Type, v)
			if err != nil {
				return err
			}
			putWord(cell, word)
		}
		f.Args = append(f.Args, Arg{Ptr: cell})
		f.outs = append(f.outs, outSlot{p: p, cell: cell})
	}
	return nil
}

func (f *Frame) pushBuffer(codec *Codec, p Param, v any) error {
	var data []byte
	if p.consumes() {
		var err error
		if data, err = toBytes(codec, v); err != nil {
			return err
		}
		if p.MaxLength > 0 && len(data) >= p.MaxLength {
			return fmt.Errorf("%w: %d bytes, limit %d", ErrStringTooLong, len(data), p.MaxLength-1)
		}
	}
	if p.Dir == In {
		buf := make([]byte, len(data)+1)
		copy(buf, data)
		f.Args = append(f.Args,
			Arg{Ptr: buf},
			Arg{Word: uint64(len(data)), Size: lengthSize})
		return nil
	}
	n := p.bufferLen()
	if len(data) >= n {
		return fmt.Errorf("%w: %d bytes, buffer %d", ErrStringTooLong, len(data), n)
	}
	buf := make([]byte, n)
	copy(buf, data)
	f.Args = append(f.Args,
		Arg{Ptr: buf},
		Arg{Word: uint64(n), Size: lengthSize},
		Arg{Ptr: make([]byte, lengthSize)})
	f.outs = append(f.outs, outSlot{p: p, cell: buf})
	return nil
}

// Outputs decodes the output cells in declaration order.
func (f *Frame) Outputs(codec *Codec) ([]any, error) {
	if len(f.outs) == 0 {
		return nil, nil
	}
	out := make([]any, 0, len(f.outs))
	for _, o := range f.outs {
		if o.p.Kind == Buffer {
			raw := o.cell
			if i := bytes.IndexByte(raw, 0); i >= 0 {
				raw = raw[:i]
			}
			s, err := codec.Decode(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
			continue
		}
		out = append(out, fromWord(o.p.Type, getWord(o.cell)))
	}
	return out, nil
}

func putWord(cell []byte, w uint64) {
	switch len(cell) {
	case 1:
		cell[0] = byte(w)
	case 2:
		binary.LittleEndian.PutUint16(cell, uint16(w))
	case 4:
		binary.LittleEndian.PutUint32(cell, uint32(w))
	case 8:
		binary.LittleEndian.PutUint64(cell, w)
	}
}

func getWord(cell []byte) uint64 {
	switch len(cell) {
	case 1:
		return uint64(cell[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(cell))
	case 4:
		return uint64(binary.LittleEndian.Uint32(cell))
	case 8:
		return binary.LittleEndian.Uint64(cell)
	}
	return 0
}

// fromWord converts raw bits to the Go type matching t.
func fromWord(t NativeType, w uint64) any {
	switch t {
	case Char:
		return int8(w)
	case Byte:
		return uint8(w)
	case Short:
		return int16(w)
	case UShort:
		return uint16(w)
	case Long:
		return int32(w)
	case ULong:
		return uint32(w)
	case LongLong:
		return int64(w)
	case ULongLong:
		return w
	case Float:
		return math.Float32frombits(uint32(w))
	case Double:
		return math.Float64frombits(w)
	}
	return w
}

// toWord range-checks v against t and returns its bits, truncated to the
// type width.
func toWord(t NativeType, v any) (uint64, error) {
	if t.float() {
		f, ok := asFloat(v)
		if !ok {
			return 0, fmt.Errorf("%w: %T for %s", ErrArgType, v, t)
		}
		if t == Float {
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return 0, fmt.Errorf("%w: %g for %s", ErrValueRange, f, t)
			}
			return uint64(math.Float32bits(float32(f))), nil
		}
		return math.Float64bits(f), nil
	}

	bits := uint(t.Size() * 8)
	if t.signed() {
		n, ok := asInt(v)
		if !ok {
			return 0, fmt.Errorf("%w: %T for %s", ErrArgType, v, t)
		}
		lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
		if bits == 64 {
			lo, hi = math.MinInt64, math.MaxInt64
		}
		if n < lo || n > hi {
			return 0, fmt.Errorf("%w: %d for %s", ErrValueRange, n, t)
		}
		return uint64(n) & mask(bits), nil
	}
	u, ok, neg := asUint(v)
	if !ok {
		return 0, fmt.Errorf("%w: %T for %s", ErrArgType, v, t)
	}
	if neg {
		return 0, fmt.Errorf("%w: %v for %s", ErrValueRange, v, t)
	}
	if u > mask(bits) {
		return 0, fmt.Errorf("%w: %d for %s", ErrValueRange, u, t)
	}
	return u, nil
}

func mask(bits uint) uint64 {
	if bits >= 64 {
		return math.MaxUint64
	}
	return 1<<bits - 1
}

func asInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Bool:
		if rv.Bool() {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asUint(v any) (u uint64, ok, negative bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true, false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < 0 {
			return 0, true, true
		}
		return uint64(n), true, false
	case reflect.Bool:
		if rv.Bool() {
			return 1, true, false
		}
		return 0, true, false
	}
	return 0, false, false
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

func toBytes(codec *Codec, v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return codec.Encode(s)
	case []byte:
		return s, nil
	case fmt.Stringer:
		return codec.Encode(s.String())
	}
	return nil, fmt.Errorf("%w: %T for string", ErrArgType, v)
}
