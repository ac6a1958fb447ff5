// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const describeMethod = "__describe__"

// Describe schema field definitions.
var describeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "method_type", Type: arrow.BinaryTypes.String},
	{Name: "doc", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "has_return", Type: &arrow.BooleanType{}},
	{Name: "params_schema_ipc", Type: arrow.BinaryTypes.Binary},
	{Name: "result_schema_ipc", Type: arrow.BinaryTypes.Binary},
	{Name: "param_types_json", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "param_defaults_json", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "has_header", Type: &arrow.BooleanType{}},
	{Name: "header_schema_ipc", Type: arrow.BinaryTypes.Binary, Nullable: true},
}, nil)

// Describe metadata keys.
const (
	MetaProtocolName    = "vgi_rpc.protocol_name"
	MetaDescribeVersion = "vgi_rpc.describe_version"
	DescribeVersion     = "2"
)

// MethodDescription is one row of a __describe__ response.
type MethodDescription struct {
	Name         string
	MethodType   string
	Doc          string
	HasReturn    bool
	ParamsSchema *arrow.Schema
	ResultSchema *arrow.Schema
	ParamTypes   map[string]string
	Defaults     map[string]any
}

// serializeSchema serializes an Arrow schema to IPC format bytes.
func serializeSchema(schema *arrow.Schema) []byte {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	w.Close()
	return buf.Bytes()
}

func deserializeSchema(data []byte) (*arrow.Schema, error) {
	r, err := ipc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Release()
	return r.Schema(), nil
}

func (s *Server) describeResponse() *response {
	batch, meta := s.buildDescribeBatch()
	defer batch.Release()
	withMeta := array.NewRecordBatchWithMetadata(describeSchema, batch.Columns(), batch.NumRows(), meta)
	return &response{schema: describeSchema, result: withMeta}
}

// buildDescribeBatch builds the __describe__ response batch and metadata.
func (s *Server) buildDescribeBatch() (arrow.RecordBatch, arrow.Metadata) {
	mem := memory.NewGoAllocator()
	names := s.availableMethods()

	nameBuilder := array.NewStringBuilder(mem)
	defer nameBuilder.Release()
	methodTypeBuilder := array.NewStringBuilder(mem)
	defer methodTypeBuilder.Release()
	docBuilder := array.NewStringBuilder(mem)
	defer docBuilder.Release()
	hasReturnBuilder := array.NewBooleanBuilder(mem)
	defer hasReturnBuilder.Release()
	paramsSchemaBuilder := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer paramsSchemaBuilder.Release()
	resultSchemaBuilder := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer resultSchemaBuilder.Release()
	paramTypesBuilder := array.NewStringBuilder(mem)
	defer paramTypesBuilder.Release()
	paramDefaultsBuilder := array.NewStringBuilder(mem)
	defer paramDefaultsBuilder.Release()
	hasHeaderBuilder := array.NewBooleanBuilder(mem)
	defer hasHeaderBuilder.Release()
	headerSchemaBuilder := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer headerSchemaBuilder.Release()

	for _, name := range names {
		info := s.methods[name]

		nameBuilder.Append(name)
		methodTypeBuilder.Append(DispatchMethodUnary)
		if info.Doc != "" {
			docBuilder.Append(info.Doc)
		} else {
			docBuilder.AppendNull()
		}
		hasReturnBuilder.Append(info.HasReturn)
		paramsSchemaBuilder.Append(serializeSchema(info.ParamsSchema))
		resultSchemaBuilder.Append(serializeSchema(info.ResultSchema))

		if info.ParamsSchema.NumFields() > 0 {
			paramTypes := make(map[string]string)
			for _, f := range info.ParamsSchema.Fields() {
				paramTypes[f.Name] = arrowTypeToString(f.Type)
			}
			ptJSON, err := json.Marshal(paramTypes)
			if err != nil {
				s.logger.Error("failed to marshal param types JSON", "err", err)
				paramTypesBuilder.AppendNull()
			} else {
				paramTypesBuilder.Append(string(ptJSON))
			}
		} else {
			paramTypesBuilder.AppendNull()
		}

		// Values must be native JSON types, not all strings.
		if len(info.ParamDefaults) > 0 {
			typed := make(map[string]any, len(info.ParamDefaults))
			for k, v := range info.ParamDefaults {
				typed[k] = coerceDefaultValue(v, info.ParamsSchema, k)
			}
			pdJSON, err := json.Marshal(typed)
			if err != nil {
				s.logger.Error("failed to marshal param defaults JSON", "err", err)
				paramDefaultsBuilder.AppendNull()
			} else {
				paramDefaultsBuilder.Append(string(pdJSON))
			}
		} else {
			paramDefaultsBuilder.AppendNull()
		}

		hasHeaderBuilder.Append(false)
		headerSchemaBuilder.AppendNull()
	}

	cols := []arrow.Array{
		nameBuilder.NewArray(),
		methodTypeBuilder.NewArray(),
		docBuilder.NewArray(),
		hasReturnBuilder.NewArray(),
		paramsSchemaBuilder.NewArray(),
		resultSchemaBuilder.NewArray(),
		paramTypesBuilder.NewArray(),
		paramDefaultsBuilder.NewArray(),
		hasHeaderBuilder.NewArray(),
		headerSchemaBuilder.NewArray(),
	}
	for _, c := range cols {
		defer c.Release()
	}

	batch := array.NewRecordBatch(describeSchema, cols, int64(len(names)))

	keys := []string{MetaProtocolName, MetaRequestVersion, MetaDescribeVersion}
	vals := []string{s.protocolName(), ProtocolVersion, DescribeVersion}
	if s.serverID != "" {
		keys = append(keys, MetaServerID)
		vals = append(vals, s.serverID)
	}
	return batch, arrow.NewMetadata(keys, vals)
}

func (s *Server) protocolName() string {
	if s.serviceName != "" {
		return s.serviceName
	}
	return "GoRpcServer"
}

// ParseDescribe decodes a __describe__ result batch.
func ParseDescribe(batch arrow.RecordBatch) ([]MethodDescription, error) {
	if batch.NumCols() < 8 {
		return nil, fmt.Errorf("%w: unexpected describe schema %s", ErrProtocol, batch.Schema())
	}
	names, ok1 := batch.Column(0).(*array.String)
	types, ok2 := batch.Column(1).(*array.String)
	docs, ok3 := batch.Column(2).(*array.String)
	hasReturn, ok4 := batch.Column(3).(*array.Boolean)
	params, ok5 := batch.Column(4).(*array.Binary)
	results, ok6 := batch.Column(5).(*array.Binary)
	paramTypes, ok7 := batch.Column(6).(*array.String)
	defaults, ok8 := batch.Column(7).(*array.String)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8) {
		return nil, fmt.Errorf("%w: unexpected describe schema %s", ErrProtocol, batch.Schema())
	}

	out := make([]MethodDescription, batch.NumRows())
	for i := range out {
		d := MethodDescription{
			Name:       names.Value(i),
			MethodType: types.Value(i),
			HasReturn:  hasReturn.Value(i),
		}
		if docs.IsValid(i) {
			d.Doc = docs.Value(i)
		}
		var err error
		if d.ParamsSchema, err = deserializeSchema(params.Value(i)); err != nil {
			return nil, fmt.Errorf("%s params schema: %w", d.Name, err)
		}
		if d.ResultSchema, err = deserializeSchema(results.Value(i)); err != nil {
			return nil, fmt.Errorf("%s result schema: %w", d.Name, err)
		}
		if paramTypes.IsValid(i) {
			_ = json.Unmarshal([]byte(paramTypes.Value(i)), &d.ParamTypes)
		}
		if defaults.IsValid(i) {
			_ = json.Unmarshal([]byte(defaults.Value(i)), &d.Defaults)
		}
		out[i] = d
	}
	return out, nil
}

// coerceDefaultValue converts a string default to its proper JSON type
// based on the Arrow schema field type.
func coerceDefaultValue(val string, schema *arrow.Schema, fieldName string) any {
	indices := schema.FieldIndices(fieldName)
	if len(indices) == 0 {
		return val
	}
	f := schema.Field(indices[0])
	switch f.Type.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			return v
		}
	case arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		if v, err := strconv.ParseUint(val, 10, 64); err == nil {
			return v
		}
	case arrow.FLOAT64, arrow.FLOAT32:
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			return v
		}
	case arrow.BOOL:
		if v, err := strconv.ParseBool(val); err == nil {
			return v
		}
	}
	return val
}

// arrowTypeToString returns a human-readable type name for an Arrow type.
func arrowTypeToString(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.STRING:
		return "string"
	case arrow.INT64:
		return "int"
	case arrow.FLOAT64:
		return "float"
	case arrow.BOOL:
		return "bool"
	case arrow.BINARY:
		return "bytes"
	case arrow.LIST:
		lt := dt.(*arrow.ListType)
		return "list[" + arrowTypeToString(lt.Elem()) + "]"
	default:
		// int8 … uint64, float32
		return dt.String()
	}
}
