// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowSerializable is implemented by Go structs that describe their own
// Arrow schema. Fields are matched to columns by `arrow` struct tag. At the
// method parameter and result level these values travel as a binary column
// holding a one-row IPC stream.
type ArrowSerializable interface {
	ArrowSchema() *arrow.Schema
}

var arrowSerializableType = reflect.TypeOf((*ArrowSerializable)(nil)).Elem()

func isArrowSerializable(t reflect.Type) bool {
	return t.Implements(arrowSerializableType) || reflect.PointerTo(t).Implements(arrowSerializableType)
}

// tagInfo holds a parsed `vgirpc:"name[,default=V][,int32|float32|binary]"` tag.
type tagInfo struct {
	Name      string
	Default   *string
	ArrowType string
}

func parseTag(tag string) tagInfo {
	parts := strings.Split(tag, ",")
	info := tagInfo{Name: parts[0]}
	for _, part := range parts[1:] {
		if val, ok := strings.CutPrefix(part, "default="); ok {
			info.Default = &val
		} else {
			info.ArrowType = part
		}
	}
	return info
}

// field binds one tagged struct field to its Arrow column.
type field struct {
	index    int
	tag      tagInfo
	typ      reflect.Type
	arrow    arrow.DataType
	nullable bool
}

// goTypeToArrowType maps a Go type to an Arrow type. Pointer types become
// nullable columns.
func goTypeToArrowType(t reflect.Type, hint string) (arrow.DataType, bool, error) {
	nullable := false
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}
	switch hint {
	case "int32":
		return arrow.PrimitiveTypes.Int32, nullable, nil
	case "float32":
		return arrow.PrimitiveTypes.Float32, nullable, nil
	case "binary":
		return arrow.BinaryTypes.Binary, nullable, nil
	}
	if isArrowSerializable(t) {
		return arrow.BinaryTypes.Binary, nullable, nil
	}
	switch t.Kind() {
	case reflect.String:
		return arrow.BinaryTypes.String, nullable, nil
	case reflect.Int, reflect.Int64:
		return arrow.PrimitiveTypes.Int64, nullable, nil
	case reflect.Int32:
		return arrow.PrimitiveTypes.Int32, nullable, nil
	case reflect.Int16:
		return arrow.PrimitiveTypes.Int16, nullable, nil
	case reflect.Int8:
		return arrow.PrimitiveTypes.Int8, nullable, nil
	case reflect.Uint, reflect.Uint64:
		return arrow.PrimitiveTypes.Uint64, nullable, nil
	case reflect.Uint32:
		return arrow.PrimitiveTypes.Uint32, nullable, nil
	case reflect.Uint16:
		return arrow.PrimitiveTypes.Uint16, nullable, nil
	case reflect.Uint8:
		return arrow.PrimitiveTypes.Uint8, nullable, nil
	case reflect.Float64:
		return arrow.PrimitiveTypes.Float64, nullable, nil
	case reflect.Float32:
		return arrow.PrimitiveTypes.Float32, nullable, nil
	case reflect.Bool:
		return arrow.FixedWidthTypes.Boolean, nullable, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return arrow.BinaryTypes.Binary, nullable, nil
		}
		elem, _, err := goTypeToArrowType(t.Elem(), "")
		if err != nil {
			return nil, false, fmt.Errorf("list element: %w", err)
		}
		return arrow.ListOf(elem), nullable, nil
	}
	return nil, false, fmt.Errorf("unsupported Go type: %v (kind: %v)", t, t.Kind())
}

// structFields collects the `vgirpc`-tagged fields of t.
func structFields(t reflect.Type) ([]field, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected struct type, got %v", t.Kind())
	}
	var fields []field
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("vgirpc")
		if tag == "" || tag == "-" {
			continue
		}
		info := parseTag(tag)
		dt, nullable, err := goTypeToArrowType(f.Type, info.ArrowType)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields = append(fields, field{index: i, tag: info, typ: f.Type, arrow: dt, nullable: nullable})
	}
	return fields, nil
}

func fieldsSchema(fields []field) *arrow.Schema {
	af := make([]arrow.Field, len(fields))
	for i, f := range fields {
		af[i] = arrow.Field{Name: f.tag.Name, Type: f.arrow, Nullable: f.nullable}
	}
	return arrow.NewSchema(af, nil)
}

// resultSchema is the single "result" column schema for a return type.
func resultSchema(t reflect.Type) (*arrow.Schema, error) {
	if t == nil {
		return arrow.NewSchema(nil, nil), nil
	}
	dt, nullable, err := goTypeToArrowType(t, "")
	if err != nil {
		return nil, fmt.Errorf("result type: %w", err)
	}
	return arrow.NewSchema([]arrow.Field{{Name: "result", Type: dt, Nullable: nullable}}, nil), nil
}

func columnIndex(batch arrow.RecordBatch, name string) int {
	if idx := batch.Schema().FieldIndices(name); len(idx) > 0 {
		return idx[0]
	}
	return -1
}

// decodeStruct reads row 0 of batch into a new value of type t. Absent or
// null columns fall back to the tag default.
func decodeStruct(batch arrow.RecordBatch, t reflect.Type, fields []field) (reflect.Value, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := reflect.New(t).Elem()
	for _, f := range fields {
		dst := out.Field(f.index)
		ci := columnIndex(batch, f.tag.Name)
		if ci < 0 || batch.NumRows() == 0 || batch.Column(ci).IsNull(0) {
			if f.tag.Default != nil {
				if err := setFromString(dst, *f.tag.Default); err != nil {
					return reflect.Value{}, fmt.Errorf("default for %s: %w", f.tag.Name, err)
				}
			}
			continue
		}
		if err := setValue(dst, batch.Column(ci), 0); err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", f.tag.Name, err)
		}
	}
	return out, nil
}

// encodeStruct builds a one-row batch from v's tagged fields.
func encodeStruct(schema *arrow.Schema, fields []field, v reflect.Value) (arrow.RecordBatch, error) {
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	vals := make([]reflect.Value, len(fields))
	for i, f := range fields {
		vals[i] = v.Field(f.index)
	}
	return buildBatch(schema, vals)
}

// serializeResult builds a one-row batch with a single "result" column.
func serializeResult(schema *arrow.Schema, value reflect.Value) (arrow.RecordBatch, error) {
	if schema.NumFields() == 0 {
		return array.NewRecordBatch(schema, nil, 0), nil
	}
	return buildBatch(schema, []reflect.Value{value})
}

// buildBatch builds a one-row batch, one value per schema field.
func buildBatch(schema *arrow.Schema, vals []reflect.Value) (arrow.RecordBatch, error) {
	mem := memory.NewGoAllocator()
	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for i, f := range schema.Fields() {
		b := array.NewBuilder(mem, f.Type)
		err := appendValue(b, vals[i])
		if err == nil {
			cols[i] = b.NewArray()
		}
		b.Release()
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
	}
	return array.NewRecordBatch(schema, cols, 1), nil
}

// appendValue appends v to b, converting between Go and Arrow numeric
// widths with range checks.
func appendValue(b array.Builder, v reflect.Value) error {
	if !v.IsValid() {
		b.AppendNull()
		return nil
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			b.AppendNull()
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			b.AppendNull()
			return nil
		}
		if !v.Type().Implements(arrowSerializableType) {
			v = v.Elem()
		}
	}

	switch b := b.(type) {
	case *array.StringBuilder:
		if v.Kind() != reflect.String {
			return fmt.Errorf("cannot store %v as string", v.Type())
		}
		b.Append(v.String())
	case *array.BooleanBuilder:
		if v.Kind() != reflect.Bool {
			return fmt.Errorf("cannot store %v as bool", v.Type())
		}
		b.Append(v.Bool())
	case *array.Int8Builder:
		n, err := signedValue(v, 8)
		b.Append(int8(n))
		return err
	case *array.Int16Builder:
		n, err := signedValue(v, 16)
		b.Append(int16(n))
		return err
	case *array.Int32Builder:
		n, err := signedValue(v, 32)
		b.Append(int32(n))
		return err
	case *array.Int64Builder:
		n, err := signedValue(v, 64)
		b.Append(n)
		return err
	case *array.Uint8Builder:
		n, err := unsignedValue(v, 8)
		b.Append(uint8(n))
		return err
	case *array.Uint16Builder:
		n, err := unsignedValue(v, 16)
		b.Append(uint16(n))
		return err
	case *array.Uint32Builder:
		n, err := unsignedValue(v, 32)
		b.Append(uint32(n))
		return err
	case *array.Uint64Builder:
		n, err := unsignedValue(v, 64)
		b.Append(n)
		return err
	case *array.Float32Builder:
		f, err := floatValue(v)
		b.Append(float32(f))
		return err
	case *array.Float64Builder:
		f, err := floatValue(v)
		b.Append(f)
		return err
	case *array.BinaryBuilder:
		as, ok := v.Interface().(ArrowSerializable)
		if !ok && v.CanAddr() {
			as, ok = v.Addr().Interface().(ArrowSerializable)
		}
		if ok {
			data, err := serializeArrowSerializable(as)
			if err != nil {
				return err
			}
			b.Append(data)
			return nil
		}
		if v.Kind() != reflect.Slice || v.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("cannot store %v as binary", v.Type())
		}
		b.Append(v.Bytes())
	case *array.ListBuilder:
		if v.Kind() != reflect.Slice {
			return fmt.Errorf("cannot store %v as list", v.Type())
		}
		b.Append(true)
		vb := b.ValueBuilder()
		for i := range v.Len() {
			if err := appendValue(vb, v.Index(i)); err != nil {
				return fmt.Errorf("list element [%d]: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unsupported Arrow builder %T", b)
	}
	return nil
}

func signedValue(v reflect.Value, bits int) (int64, error) {
	var n int64
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int%d", u, bits)
		}
		n = int64(u)
	default:
		return 0, fmt.Errorf("cannot convert %v to int%d", v.Type(), bits)
	}
	if bits < 64 && (n < -1<<(bits-1) || n > 1<<(bits-1)-1) {
		return 0, fmt.Errorf("%d overflows int%d", n, bits)
	}
	return n, nil
}

func unsignedValue(v reflect.Value, bits int) (uint64, error) {
	var u uint64
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u = v.Uint()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := v.Int()
		if n < 0 {
			return 0, fmt.Errorf("%d overflows uint%d", n, bits)
		}
		u = uint64(n)
	default:
		return 0, fmt.Errorf("cannot convert %v to uint%d", v.Type(), bits)
	}
	if bits < 64 && u > 1<<bits-1 {
		return 0, fmt.Errorf("%d overflows uint%d", u, bits)
	}
	return u, nil
}

func floatValue(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	}
	return 0, fmt.Errorf("cannot convert %v to float", v.Type())
}

// setValue stores col[i] into dst, allocating pointers as needed.
func setValue(dst reflect.Value, col arrow.Array, i int) error {
	if dst.Kind() == reflect.Pointer && !dst.Type().Implements(arrowSerializableType) {
		if col.IsNull(i) {
			dst.SetZero()
			return nil
		}
		p := reflect.New(dst.Type().Elem())
		if err := setValue(p.Elem(), col, i); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	if col.IsNull(i) {
		dst.SetZero()
		return nil
	}
	if dst.Kind() == reflect.Interface {
		dst.Set(reflect.ValueOf(valueAt(col, i)))
		return nil
	}

	switch c := col.(type) {
	case *array.String:
		if dst.Kind() != reflect.String {
			return fmt.Errorf("cannot load string into %v", dst.Type())
		}
		dst.SetString(c.Value(i))
	case *array.Boolean:
		if dst.Kind() != reflect.Bool {
			return fmt.Errorf("cannot load bool into %v", dst.Type())
		}
		dst.SetBool(c.Value(i))
	case *array.Binary:
		if isArrowSerializable(dst.Type()) {
			val, err := deserializeArrowSerializable(dst.Type(), c.Value(i))
			if err != nil {
				return err
			}
			dst.Set(val)
			return nil
		}
		dst.SetBytes(bytes.Clone(c.Value(i)))
	case *array.List:
		if dst.Kind() != reflect.Slice {
			return fmt.Errorf("cannot load list into %v", dst.Type())
		}
		start, end := c.ValueOffsets(i)
		values := c.ListValues()
		s := reflect.MakeSlice(dst.Type(), int(end-start), int(end-start))
		for j := range s.Len() {
			if err := setValue(s.Index(j), values, int(start)+j); err != nil {
				return fmt.Errorf("list element [%d]: %w", j, err)
			}
		}
		dst.Set(s)
	default:
		return setNumber(dst, valueAt(col, i))
	}
	return nil
}

func setNumber(dst reflect.Value, v any) error {
	if v == nil {
		return fmt.Errorf("cannot load %v", dst.Type())
	}
	rv := reflect.ValueOf(v)
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := signedValue(rv, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := unsignedValue(rv, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := floatValue(rv)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	default:
		return fmt.Errorf("cannot load %T into %v", v, dst.Type())
	}
	return nil
}

// valueAt returns col[i] as the Go value matching its Arrow type, or nil.
func valueAt(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch c := col.(type) {
	case *array.String:
		return c.Value(i)
	case *array.Boolean:
		return c.Value(i)
	case *array.Binary:
		return bytes.Clone(c.Value(i))
	case *array.Int8:
		return c.Value(i)
	case *array.Int16:
		return c.Value(i)
	case *array.Int32:
		return c.Value(i)
	case *array.Int64:
		return c.Value(i)
	case *array.Uint8:
		return c.Value(i)
	case *array.Uint16:
		return c.Value(i)
	case *array.Uint32:
		return c.Value(i)
	case *array.Uint64:
		return c.Value(i)
	case *array.Float32:
		return c.Value(i)
	case *array.Float64:
		return c.Value(i)
	}
	return nil
}

// setFromString applies a struct tag default.
func setFromString(dst reflect.Value, s string) error {
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := setFromString(p.Elem(), s); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(s, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(s, 10, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(s, dst.Type().Bits())
		if err != nil {
			return err
		}
		dst.SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		dst.SetBool(v)
	default:
		return fmt.Errorf("default value parsing not supported for %v", dst.Kind())
	}
	return nil
}

// serializeArrowSerializable writes as as a one-row IPC stream.
func serializeArrowSerializable(as ArrowSerializable) ([]byte, error) {
	schema := as.ArrowSchema()
	rv := reflect.ValueOf(as)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	vals := make([]reflect.Value, schema.NumFields())
	for i, f := range schema.Fields() {
		idx, ok := arrowFieldIndex(rv.Type(), f.Name)
		if !ok {
			return nil, fmt.Errorf("no field with arrow tag %q", f.Name)
		}
		vals[i] = rv.Field(idx)
	}
	batch, err := buildBatch(schema, vals)
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := w.Write(batch); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeArrowSerializable reads a one-row IPC stream into a value of t.
func deserializeArrowSerializable(t reflect.Type, data []byte) (reflect.Value, error) {
	isPtr := t.Kind() == reflect.Pointer
	if isPtr {
		t = t.Elem()
	}
	reader, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return reflect.Value{}, fmt.Errorf("reading ArrowSerializable IPC: %w", err)
	}
	defer reader.Release()
	if !reader.Next() {
		return reflect.Value{}, fmt.Errorf("no batch in ArrowSerializable IPC stream")
	}
	batch := reader.RecordBatch()

	out := reflect.New(t)
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("arrow")
		if tag == "" {
			continue
		}
		ci := columnIndex(batch, tag)
		if ci < 0 {
			continue
		}
		if err := setValue(out.Elem().Field(i), batch.Column(ci), 0); err != nil {
			return reflect.Value{}, fmt.Errorf("ArrowSerializable field %s: %w", tag, err)
		}
	}
	if isPtr {
		return out, nil
	}
	return out.Elem(), nil
}

func arrowFieldIndex(t reflect.Type, name string) (int, bool) {
	for i := range t.NumField() {
		if t.Field(i).Tag.Get("arrow") == name {
			return i, true
		}
	}
	return 0, false
}
