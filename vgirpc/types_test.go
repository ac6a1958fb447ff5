// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"math"
	"reflect"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	info := parseTag("count,default=3,int32")
	assert.Equal(t, "count", info.Name)
	require.NotNil(t, info.Default)
	assert.Equal(t, "3", *info.Default)
	assert.Equal(t, "int32", info.ArrowType)

	assert.Nil(t, parseTag("name").Default)
}

func TestGoTypeToArrowType(t *testing.T) {
	cases := []struct {
		v        any
		hint     string
		want     arrow.DataType
		nullable bool
	}{
		{"", "", arrow.BinaryTypes.String, false},
		{int(0), "", arrow.PrimitiveTypes.Int64, false},
		{int(0), "int32", arrow.PrimitiveTypes.Int32, false},
		{uint32(0), "", arrow.PrimitiveTypes.Uint32, false},
		{uint8(0), "", arrow.PrimitiveTypes.Uint8, false},
		{float64(0), "float32", arrow.PrimitiveTypes.Float32, false},
		{[]byte(nil), "", arrow.BinaryTypes.Binary, false},
		{[]string(nil), "", arrow.ListOf(arrow.BinaryTypes.String), false},
		{(*int16)(nil), "", arrow.PrimitiveTypes.Int16, true},
	}
	for _, tc := range cases {
		dt, nullable, err := goTypeToArrowType(reflect.TypeOf(tc.v), tc.hint)
		require.NoError(t, err, "%T", tc.v)
		assert.True(t, arrow.TypeEqual(tc.want, dt), "%T: got %s", tc.v, dt)
		assert.Equal(t, tc.nullable, nullable)
	}

	_, _, err := goTypeToArrowType(reflect.TypeOf(map[string]int{}), "")
	assert.Error(t, err)
}

func TestBuildRowRangeChecks(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Uint8},
	}, nil)
	for _, v := range []any{256, -1, uint64(math.MaxUint64), "x"} {
		_, err := BuildRow(schema, []any{v})
		assert.Error(t, err, "%v", v)
	}
	batch, err := BuildRow(schema, []any{int64(255)})
	require.NoError(t, err)
	defer batch.Release()
	assert.Equal(t, []any{uint8(255)}, ColumnValues(batch))
}

func TestRowValuesChecksTypes(t *testing.T) {
	i32 := arrow.NewSchema([]arrow.Field{{Name: "arg0", Type: arrow.PrimitiveTypes.Int32}}, nil)
	u32 := arrow.NewSchema([]arrow.Field{{Name: "arg0", Type: arrow.PrimitiveTypes.Uint32}}, nil)
	batch, err := BuildRow(i32, []any{7})
	require.NoError(t, err)
	defer batch.Release()

	vals, err := RowValues(batch, i32)
	require.NoError(t, err)
	assert.Equal(t, []any{int32(7)}, vals)

	_, err = RowValues(batch, u32)
	assert.Error(t, err)

	missing := arrow.NewSchema([]arrow.Field{{Name: "other", Type: arrow.PrimitiveTypes.Int32}}, nil)
	vals, err = RowValues(batch, missing)
	require.NoError(t, err)
	assert.Equal(t, []any{nil}, vals)
}

func TestStructRoundTrip(t *testing.T) {
	type params struct {
		Name   string   `vgirpc:"name"`
		Small  int8     `vgirpc:"small"`
		Tags   []string `vgirpc:"tags"`
		Maybe  *float64 `vgirpc:"maybe"`
		Flag   bool     `vgirpc:"flag,default=true"`
		hidden int
	}
	typ := reflect.TypeOf(params{})
	fields, err := structFields(typ)
	require.NoError(t, err)
	require.Len(t, fields, 5)

	in := params{Name: "n", Small: -3, Tags: []string{"a", "b"}, Flag: true}
	batch, err := encodeStruct(fieldsSchema(fields), fields, reflect.ValueOf(in))
	require.NoError(t, err)
	defer batch.Release()

	out, err := decodeStruct(batch, typ, fields)
	require.NoError(t, err)
	assert.Equal(t, in, out.Interface())
}
