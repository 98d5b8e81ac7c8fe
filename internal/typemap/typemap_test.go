package typemap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/typemap"
)

func TestSchemaTypeTotal(t *testing.T) {
	for _, tag := range typemap.Tags {
		require.True(t, typemap.Known(tag), tag)
		require.NotEmpty(t, typemap.SchemaType(tag), tag)
		require.NotEmpty(t, typemap.TargetType(tag).Name, tag)
	}
	for _, tag := range []string{"", "decimal", "enum", "STRING", "message"} {
		require.False(t, typemap.Known(tag), tag)
		require.Equal(t, typemap.JSON, typemap.SchemaType(tag), tag)
		require.Equal(t, "any", typemap.TargetType(tag).String(), tag)
	}
}

func TestSchemaTypeTable(t *testing.T) {
	for tag, want := range map[string]string{
		"string":      "String",
		"text":        "String",
		"uuid":        "String",
		"time":        "String",
		"date":        "String",
		"timestamp":   "String",
		"boolean":     "Boolean",
		"bool":        "Boolean",
		"int":         "Float",
		"int32":       "Float",
		"int64":       "Float",
		"float":       "Float",
		"double":      "Float",
		"uint32":      "Float",
		"uint64":      "Float",
		"sint32":      "Float",
		"sint64":      "Float",
		"fixed32":     "Float",
		"fixed64":     "Float",
		"sfixed32":    "Float",
		"sfixed64":    "Float",
		"bytes":       "Bytes",
		"simpleArray": "[String]",
		"json":        "JSON",
		"jsonb":       "JSON",
		"any":         "JSON",
		"bigint":      "BigInt",
	} {
		require.Equal(t, want, typemap.SchemaType(tag), tag)
	}
}

func TestSchemaTypeRef(t *testing.T) {
	require.Equal(t, "String!", typemap.SchemaTypeRef("string", false, false))
	require.Equal(t, "String", typemap.SchemaTypeRef("string", false, true))
	require.Equal(t, "[Float]!", typemap.SchemaTypeRef("int32", true, false))
	require.Equal(t, "[JSON]", typemap.SchemaTypeRef("mystery", true, true))
}

func TestTargetType(t *testing.T) {
	for tag, want := range map[string]string{
		"string":      "string",
		"uuid":        "uuid.UUID",
		"timestamp":   "time.Time",
		"bool":        "bool",
		"int":         "int64",
		"int32":       "int32",
		"sint32":      "int32",
		"sfixed64":    "int64",
		"fixed32":     "uint32",
		"uint64":      "uint64",
		"float":       "float32",
		"double":      "float64",
		"bytes":       "[]byte",
		"simpleArray": "[]string",
		"jsonb":       "json.RawMessage",
		"bigint":      "big.Int",
	} {
		require.Equal(t, want, typemap.TargetType(tag).String(), tag)
	}
}
