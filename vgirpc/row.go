// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"fmt"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
)

// RowValues returns row 0 of batch as Go values, one per field of schema,
// matched by name. Missing and null columns yield nil. Integers keep their
// Arrow width (an INT32 column yields int32).
func RowValues(batch arrow.RecordBatch, schema *arrow.Schema) ([]any, error) {
	out := make([]any, schema.NumFields())
	if batch.NumRows() == 0 {
		return out, nil
	}
	for i, f := range schema.Fields() {
		ci := columnIndex(batch, f.Name)
		if ci < 0 {
			continue
		}
		col := batch.Column(ci)
		if !arrow.TypeEqual(col.DataType(), f.Type) {
			return nil, fmt.Errorf("column %s: got %s, want %s", f.Name, col.DataType(), f.Type)
		}
		out[i] = valueAt(col, 0)
	}
	return out, nil
}

// BuildRow builds a one-row batch from vals, one per schema field. Values
// may be any Go numeric type that fits the column; nil is stored as null.
func BuildRow(schema *arrow.Schema, vals []any) (arrow.RecordBatch, error) {
	if len(vals) != schema.NumFields() {
		return nil, fmt.Errorf("row has %d values for %d columns", len(vals), schema.NumFields())
	}
	rv := make([]reflect.Value, len(vals))
	for i, v := range vals {
		rv[i] = reflect.ValueOf(v)
	}
	return buildBatch(schema, rv)
}

// ColumnValues returns row 0 of every column of batch.
func ColumnValues(batch arrow.RecordBatch) []any {
	out := make([]any, batch.NumCols())
	if batch.NumRows() == 0 {
		return out
	}
	for i := range out {
		out[i] = valueAt(batch.Column(i), 0)
	}
	return out
}
