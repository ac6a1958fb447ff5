// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Query-farm/vgi-chariot/chrapi"
)

// columnType maps a descriptor to its wire column. String inputs travel as
// bytes already encoded by the caller's codec; string outputs come back
// decoded by the worker.
func columnType(p chrapi.Param) arrow.DataType {
	if p.Kind == chrapi.Buffer {
		if p.Dir == chrapi.Out {
			return arrow.BinaryTypes.String
		}
		return arrow.BinaryTypes.Binary
	}
	switch p.Type {
	case chrapi.Char:
		return arrow.PrimitiveTypes.Int8
	case chrapi.Byte:
		return arrow.PrimitiveTypes.Uint8
	case chrapi.Short:
		return arrow.PrimitiveTypes.Int16
	case chrapi.UShort:
		return arrow.PrimitiveTypes.Uint16
	case chrapi.Long:
		return arrow.PrimitiveTypes.Int32
	case chrapi.ULong:
		return arrow.PrimitiveTypes.Uint32
	case chrapi.LongLong:
		return arrow.PrimitiveTypes.Int64
	case chrapi.ULongLong:
		return arrow.PrimitiveTypes.Uint64
	case chrapi.Float:
		return arrow.PrimitiveTypes.Float32
	case chrapi.Double:
		return arrow.PrimitiveTypes.Float64
	}
	panic(fmt.Sprintf("bridge: no column type for %s", p))
}

// outputType is the column for a produced value. InOut buffers are read
// back as text like Out buffers.
func outputType(p chrapi.Param) arrow.DataType {
	if p.Kind == chrapi.Buffer {
		return arrow.BinaryTypes.String
	}
	return columnType(p)
}

// ParamsSchema has one column per consumed descriptor, named arg0, arg1...
func ParamsSchema(f *chrapi.Function) *arrow.Schema {
	in := f.Inputs()
	fields := make([]arrow.Field, len(in))
	for i, p := range in {
		fields[i] = arrow.Field{Name: fmt.Sprintf("arg%d", i), Type: columnType(p), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// ResultSchema is rc followed by one column per produced descriptor.
func ResultSchema(f *chrapi.Function) *arrow.Schema {
	out := f.Outputs()
	fields := make([]arrow.Field, 0, len(out)+1)
	fields = append(fields, arrow.Field{Name: "rc", Type: arrow.PrimitiveTypes.Int32})
	for i, p := range out {
		fields = append(fields, arrow.Field{Name: fmt.Sprintf("out%d", i), Type: outputType(p)})
	}
	return arrow.NewSchema(fields, nil)
}

// signature renders f the way the describe page shows it.
func signature(f *chrapi.Function) string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}
	doc := fmt.Sprintf("%s(%s)", f.Name, strings.Join(parts, ", "))
	if f.Constraint != nil {
		doc += " [" + f.Constraint.String() + "]"
	}
	return doc
}
