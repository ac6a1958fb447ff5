// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package chrapi_test

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

func TestScalarRoundTrip(t *testing.T) {
	cases := []struct {
		typ  chrapi.NativeType
		vals []any
	}{
		{chrapi.Char, []any{int8(math.MinInt8), int8(0), int8(math.MaxInt8)}},
		{chrapi.Byte, []any{uint8(0), uint8(math.MaxUint8)}},
		{chrapi.Short, []any{int16(math.MinInt16), int16(math.MaxInt16)}},
		{chrapi.UShort, []any{uint16(0), uint16(math.MaxUint16)}},
		{chrapi.Long, []any{int32(math.MinInt32), int32(-1), int32(math.MaxInt32)}},
		{chrapi.ULong, []any{uint32(0), uint32(math.MaxUint32)}},
		{chrapi.LongLong, []any{int64(math.MinInt64), int64(math.MaxInt64)}},
		{chrapi.ULongLong, []any{uint64(0), uint64(math.MaxUint64)}},
		{chrapi.Float, []any{float32(-1.5), float32(math.MaxFloat32)}},
		{chrapi.Double, []any{-0.25, math.MaxFloat64, math.SmallestNonzeroFloat64}},
	}
	for _, tc := range cases {
		t.Run(tc.typ.String(), func(t *testing.T) {
			for _, v := range tc.vals {
				f, err := chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.ParamInOut(tc.typ)}, []any{v})
				require.NoError(t, err)
				outs, err := f.Outputs(chrapi.UTF8)
				require.NoError(t, err)
				require.Len(t, outs, 1)
				assert.Equal(t, v, outs[0])
			}
		})
	}
}

func TestScalarInImmediate(t *testing.T) {
	f, err := chrapi.NewFrame(chrapi.UTF8, chrapi.Params(chrapi.ULong, chrapi.ParamIn(chrapi.Double)), []any{chrapi.Handle(42), 2.5})
	require.NoError(t, err)
	require.Len(t, f.Args, 2)
	assert.Equal(t, uint64(42), f.Args[0].Word)
	assert.Equal(t, 4, f.Args[0].Size)
	assert.False(t, f.Args[0].IsPointer())
	assert.True(t, f.Args[1].Float)
	assert.Equal(t, 2.5, math.Float64frombits(f.Args[1].Word))
}

func TestSignedNegativeEncoding(t *testing.T) {
	f, err := chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.ParamIn(chrapi.Long)}, []any{-2})
	require.NoError(t, err)
	assert.Equal(t, uint64(0xfffffffe), f.Args[0].Word)
}

func TestValueRange(t *testing.T) {
	cases := []struct {
		typ chrapi.NativeType
		v   any
	}{
		{chrapi.Byte, 256},
		{chrapi.Byte, -1},
		{chrapi.Char, 128},
		{chrapi.ULong, int64(math.MaxUint32) + 1},
		{chrapi.ULong, -1},
		{chrapi.Long, int64(math.MaxInt32) + 1},
		{chrapi.Float, math.MaxFloat64},
	}
	for _, tc := range cases {
		_, err := chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.ParamIn(tc.typ)}, []any{tc.v})
		assert.ErrorIs(t, err, chrapi.ErrValueRange, "%s <- %v", tc.typ, tc.v)
	}
}

func TestArgType(t *testing.T) {
	_, err := chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.ParamIn(chrapi.ULong)}, []any{"7"})
	assert.ErrorIs(t, err, chrapi.ErrArgType)

	_, err = chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.StringIn(chrapi.MaxAddr)}, []any{7})
	assert.ErrorIs(t, err, chrapi.ErrArgType)
}

func TestArgCount(t *testing.T) {
	params := chrapi.Params(chrapi.ULong, chrapi.StringOut(chrapi.MaxAddr))
	_, err := chrapi.NewFrame(chrapi.UTF8, params, nil)
	assert.ErrorIs(t, err, chrapi.ErrArgCount)
	_, err = chrapi.NewFrame(chrapi.UTF8, params, []any{1, 2})
	assert.ErrorIs(t, err, chrapi.ErrArgCount)
}

func TestStringIn(t *testing.T) {
	f, err := chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.StringIn(chrapi.MaxAddr)}, []any{"172.28.100.80"})
	require.NoError(t, err)
	require.Len(t, f.Args, 2)
	assert.Equal(t, "172.28.100.80\x00", string(f.Args[0].Ptr))
	assert.Equal(t, uint64(len("172.28.100.80")), f.Args[1].Word)
}

func TestStringOverflowIsDetected(t *testing.T) {
	long := strings.Repeat("a", 300)
	_, err := chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.StringIn(chrapi.MaxAddr)}, []any{long})
	require.ErrorIs(t, err, chrapi.ErrStringTooLong)

	// MaxLength counts the NUL, so 64 bytes is the largest accepted value.
	_, err = chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.StringIn(chrapi.MaxAddr)}, []any{long[:chrapi.MaxAddr]})
	require.ErrorIs(t, err, chrapi.ErrStringTooLong)
	_, err = chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.StringIn(chrapi.MaxAddr)}, []any{long[:chrapi.MaxAddr-1]})
	require.NoError(t, err)

	_, err = chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.StringInOut(chrapi.MaxAddr)}, []any{long})
	require.ErrorIs(t, err, chrapi.ErrStringTooLong)
}

func TestStringOut(t *testing.T) {
	f, err := chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.StringOut(chrapi.MaxVersion)}, nil)
	require.NoError(t, err)
	require.Len(t, f.Args, 3)
	assert.Len(t, f.Args[0].Ptr, chrapi.MaxVersion)
	assert.Equal(t, uint64(chrapi.MaxVersion), f.Args[1].Word)
	assert.Len(t, f.Args[2].Ptr, 4)

	copy(f.Args[0].Ptr, "7.30\x00garbage")
	binary.LittleEndian.PutUint32(f.Args[2].Ptr, 4)
	outs, err := f.Outputs(chrapi.UTF8)
	require.NoError(t, err)
	assert.Equal(t, []any{"7.30"}, outs)
}

func TestStringOutDefaultLength(t *testing.T) {
	f, err := chrapi.NewFrame(chrapi.UTF8, []chrapi.Param{chrapi.StringOut(0)}, nil)
	require.NoError(t, err)
	assert.Len(t, f.Args[0].Ptr, chrapi.DefaultBufferSize)
	assert.Equal(t, 256, chrapi.DefaultBufferSize)
}

func TestFramesDoNotShareBuffers(t *testing.T) {
	params := []chrapi.Param{chrapi.StringOut(chrapi.MaxAddr)}
	a, err := chrapi.NewFrame(chrapi.UTF8, params, nil)
	require.NoError(t, err)
	b, err := chrapi.NewFrame(chrapi.UTF8, params, nil)
	require.NoError(t, err)
	copy(a.Args[0].Ptr, "first")
	outs, err := b.Outputs(chrapi.UTF8)
	require.NoError(t, err)
	assert.Equal(t, []any{""}, outs)
}

func TestOutputsInDeclarationOrder(t *testing.T) {
	params := chrapi.Params(
		chrapi.ULong,
		chrapi.ParamOut(chrapi.ULong),
		chrapi.StringOut(chrapi.MaxAddr),
		chrapi.ParamOut(chrapi.Byte),
	)
	f, err := chrapi.NewFrame(chrapi.UTF8, params, []any{1})
	require.NoError(t, err)
	require.Len(t, f.Args, 6)
	binary.LittleEndian.PutUint32(f.Args[1].Ptr, 99)
	copy(f.Args[2].Ptr, "host")
	f.Args[5].Ptr[0] = 3
	outs, err := f.Outputs(chrapi.UTF8)
	require.NoError(t, err)
	assert.Equal(t, []any{uint32(99), "host", uint8(3)}, outs)
}

func TestBareStringLiteralIsUnbounded(t *testing.T) {
	long := strings.Repeat("x", 5000)
	f, err := chrapi.NewFrame(chrapi.UTF8, chrapi.Params(chrapi.String), []any{long})
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), f.Args[1].Word)
}
