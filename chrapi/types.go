// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi

import "fmt"

// NativeType is a C type in a ChrApi.dll prototype.
type NativeType uint8

const (
	Char NativeType = iota + 1
	Byte
	Short
	UShort
	Long
	ULong
	LongLong
	ULongLong
	Float
	Double
	// String marks a char buffer. It is only meaningful in Buffer descriptors
	// or as a bare literal, which behaves like StringIn without a size limit.
	String
)

// Size returns the width in bytes of a scalar type, 0 for String.
func (t NativeType) Size() int {
	switch t {
	case Char, Byte:
		return 1
	case Short, UShort:
		return 2
	case Long, ULong, Float:
		return 4
	case LongLong, ULongLong, Double:
		return 8
	}
	return 0
}

func (t NativeType) String() string {
	switch t {
	case Char:
		return "char"
	case Byte:
		return "unsigned char"
	case Short:
		return "short"
	case UShort:
		return "unsigned short"
	case Long:
		return "long"
	case ULong:
		return "unsigned long"
	case LongLong:
		return "long long"
	case ULongLong:
		return "unsigned long long"
	case Float:
		return "float"
	case Double:
		return "double"
	case String:
		return "char*"
	}
	return fmt.Sprintf("NativeType(%d)", uint8(t))
}

func (t NativeType) signed() bool {
	return t == Char || t == Short || t == Long || t == LongLong
}

func (t NativeType) float() bool {
	return t == Float || t == Double
}

// Handle is an opaque IxChariot object handle.
type Handle uint32

// NullHandle is CHR_NULL_HANDLE.
const NullHandle Handle = 0

// Direction says whether a parameter carries data in, out, or both.
type Direction uint8

const (
	In Direction = iota + 1
	Out
	InOut
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case InOut:
		return "inout"
	}
	return "?"
}

// Kind distinguishes single values from char buffers.
type Kind uint8

const (
	Scalar Kind = iota + 1
	Buffer
)

// Descriptor is one element of a function signature: either a Param or a
// bare NativeType.
type Descriptor interface {
	param() Param
}

// Param describes how one logical argument is marshaled.
type Param struct {
	Dir  Direction
	Kind Kind
	Type NativeType
	// MaxLength is the vendor buffer size including the terminating NUL.
	// Zero means unlimited for inputs and DefaultBufferSize for outputs.
	MaxLength int

	literal bool
}

func (p Param) param() Param { return p }

func (t NativeType) param() Param {
	if t == String {
		return Param{Dir: In, Kind: Buffer, Type: String, literal: true}
	}
	return Param{Dir: In, Kind: Scalar, Type: t, literal: true}
}

// Params normalizes a signature written with bare native types and Param
// values.
func Params(descs ...Descriptor) []Param {
	params := make([]Param, len(descs))
	for i, d := range descs {
		params[i] = d.param()
	}
	return params
}

// DefaultBufferSize is the output buffer length used when a Buffer
// descriptor does not declare one.
const DefaultBufferSize = MaxReturnMsg

// ParamIn is a scalar input.
func ParamIn(t NativeType) Param { return Param{Dir: In, Kind: Scalar, Type: t} }

// ParamOut is a scalar written by the callee through a pointer.
func ParamOut(t NativeType) Param { return Param{Dir: Out, Kind: Scalar, Type: t} }

// ParamInOut is a scalar passed by pointer and read back after the call.
func ParamInOut(t NativeType) Param { return Param{Dir: InOut, Kind: Scalar, Type: t} }

// StringIn expands to (chars, length).
func StringIn(maxLength int) Param {
	return Param{Dir: In, Kind: Buffer, Type: String, MaxLength: maxLength}
}

// StringOut expands to (buffer, maxLength, &length) and decodes up to the NUL.
func StringOut(maxLength int) Param {
	return Param{Dir: Out, Kind: Buffer, Type: String, MaxLength: maxLength}
}

// StringInOut is StringOut with the buffer pre-filled from the caller.
func StringInOut(maxLength int) Param {
	return Param{Dir: InOut, Kind: Buffer, Type: String, MaxLength: maxLength}
}

// Literal reports whether the descriptor was a bare native type.
func (p Param) Literal() bool { return p.literal }

// consumes reports whether the descriptor takes a caller argument.
func (p Param) consumes() bool { return p.Dir == In || p.Dir == InOut }

// produces reports whether the descriptor yields an output value.
func (p Param) produces() bool { return p.Dir == Out || p.Dir == InOut }

func (p Param) bufferLen() int {
	if p.MaxLength > 0 {
		return p.MaxLength
	}
	return DefaultBufferSize
}

func (p Param) String() string {
	if p.literal {
		return p.Type.String()
	}
	if p.Kind == Buffer {
		return fmt.Sprintf("%s %s[%d]", p.Dir, p.Type, p.MaxLength)
	}
	return fmt.Sprintf("%s %s", p.Dir, p.Type)
}
