// Package typemap maps contract field type tags to GraphQL scalars and Go types.
//
// Both mappings are total: unknown tags fall back to the opaque JSON scalar
// and to the empty interface.
package typemap

import (
	"encoding/json"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// GraphQL scalar names produced by SchemaType.
const (
	String  = "String"
	Boolean = "Boolean"
	Float   = "Float"
	Int     = "Int"
	ID      = "ID"
	JSON    = "JSON"
	BigInt  = "BigInt"
	Bytes   = "Bytes"
)

// Tags lists every supported protoType tag.
var Tags = []string{
	"string", "text", "uuid", "time", "date", "timestamp",
	"boolean", "bool",
	"int", "int32", "int64", "float", "double",
	"uint32", "uint64", "sint32", "sint64",
	"fixed32", "fixed64", "sfixed32", "sfixed64",
	"bytes", "simpleArray", "json", "jsonb", "any", "bigint",
}

var schemaTypes = map[string]string{
	"string":      String,
	"text":        String,
	"uuid":        String,
	"time":        String,
	"date":        String,
	"timestamp":   String,
	"boolean":     Boolean,
	"bool":        Boolean,
	"bytes":       Bytes,
	"simpleArray": "[" + String + "]",
	"json":        JSON,
	"jsonb":       JSON,
	"any":         JSON,
	"bigint":      BigInt,
}

// Known reports whether tag belongs to the supported set.
func Known(tag string) bool {
	if _, ok := schemaTypes[tag]; ok {
		return true
	}
	_, ok := numericKind(tag)
	return ok
}

// SchemaType maps a tag to its GraphQL type. Every numeric width collapses
// to Float since the schema type system has a single number class here.
func SchemaType(tag string) string {
	if t, ok := schemaTypes[tag]; ok {
		return t
	}
	if _, ok := numericKind(tag); ok {
		return Float
	}
	return JSON
}

// SchemaTypeRef renders the full GraphQL type reference of a field:
// repeated fields are wrapped in one list level and non-nullable fields
// get the non-null marker.
func SchemaTypeRef(tag string, repeated, nullable bool) string {
	t := SchemaType(tag)
	if repeated {
		t = "[" + t + "]"
	}
	if !nullable {
		t += "!"
	}
	return t
}

// Target is a Go type reference. PkgPath is empty for predeclared types.
type Target struct {
	PkgPath string
	Name    string
	Slice   bool
	// Nilable reports whether the zero value already represents absence.
	Nilable bool
}

func (t Target) String() string {
	name := t.Name
	if t.PkgPath != "" {
		name = t.PkgPath[strings.LastIndex(t.PkgPath, "/")+1:] + "." + t.Name
	}
	if t.Slice {
		return "[]" + name
	}
	return name
}

var targets = map[string]Target{
	"string":      {Name: "string"},
	"text":        {Name: "string"},
	"time":        {Name: "string"},
	"uuid":        named[uuid.UUID](false),
	"date":        named[time.Time](false),
	"timestamp":   named[time.Time](false),
	"boolean":     {Name: "bool"},
	"bool":        {Name: "bool"},
	"bytes":       {Name: "byte", Slice: true, Nilable: true},
	"simpleArray": {Name: "string", Slice: true, Nilable: true},
	"json":        named[json.RawMessage](true),
	"jsonb":       named[json.RawMessage](true),
	"bigint":      named[big.Int](false),
}

func named[T any](nilable bool) Target {
	t := reflect.TypeFor[T]()
	return Target{PkgPath: t.PkgPath(), Name: t.Name(), Nilable: nilable}
}

var anyTarget = Target{Name: "any", Nilable: true}

// TargetType maps a tag to its Go type.
func TargetType(tag string) Target {
	if t, ok := targets[tag]; ok {
		return t
	}
	if k, ok := numericKind(tag); ok {
		return Target{Name: goNumeric(k)}
	}
	return anyTarget
}

// numericKind resolves numeric tags through the protobuf scalar kinds.
// "int" is an alias of int64.
func numericKind(tag string) (protoreflect.Kind, bool) {
	switch tag {
	case "int":
		tag = "int64"
	case "bool", "string", "bytes":
		return 0, false
	}
	v, ok := descriptorpb.FieldDescriptorProto_Type_value["TYPE_"+strings.ToUpper(tag)]
	if !ok {
		return 0, false
	}
	k := protoreflect.Kind(v)
	return k, goNumeric(k) != ""
}

func goNumeric(k protoreflect.Kind) string {
	switch k {
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return "int32"
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return "int64"
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return "uint32"
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return "uint64"
	case protoreflect.FloatKind:
		return "float32"
	case protoreflect.DoubleKind:
		return "float64"
	}
	return ""
}
