package executor

import (
	"fmt"
	"math"
	"strconv"

	language "github.com/hanpama/contractgraph/internal/language"
	schema "github.com/hanpama/contractgraph/internal/schema"
)

// coerceVariables checks the supplied variables against the operation's
// declarations. Variables that are neither supplied nor defaulted are left
// out so arguments using them fall back to their own defaults.
func (ex *execution) coerceVariables(op *language.OperationDefinition, supplied map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		t := refFromAST(def.Type)
		v, ok := supplied[def.Variable]
		if !ok {
			switch {
			case def.DefaultValue != nil:
				v = ex.literal(def.DefaultValue)
			case t.IsNonNull():
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", def.Variable, def.Type)
			default:
				continue
			}
		}
		cv, err := ex.coerceInput(v, t)
		if err != nil {
			return nil, fmt.Errorf("variable $%s got an invalid value: %w", def.Variable, err)
		}
		out[def.Variable] = cv
	}
	return out, nil
}

// coerceArguments builds the argument map for def from the field's literal
// arguments, substituting variables and applying declared defaults.
func (ex *execution) coerceArguments(def *schema.Field, given language.ArgumentList) (map[string]any, error) {
	out := make(map[string]any, len(def.Arguments))
	for _, arg := range given {
		if argumentDef(def, arg.Name) == nil {
			return nil, fmt.Errorf("unknown argument %q on field %s", arg.Name, def.Name)
		}
	}
	for _, in := range def.Arguments {
		var (
			v       any
			present bool
		)
		if arg := given.ForName(in.Name); arg != nil {
			if arg.Value.Kind == language.Variable {
				v, present = ex.vars[arg.Value.Raw]
			} else {
				v, present = ex.literal(arg.Value), true
			}
		}
		if !present {
			if in.DefaultValue == nil {
				if in.Type.IsNonNull() {
					return nil, fmt.Errorf("argument %q of required type was not provided", in.Name)
				}
				continue
			}
			v = in.DefaultValue
		}
		cv, err := ex.coerceInput(v, in.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", in.Name, err)
		}
		out[in.Name] = cv
	}
	return out, nil
}

func argumentDef(def *schema.Field, name string) *schema.InputValue {
	for _, a := range def.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// literal converts a query value to Go. Variables anywhere inside it are
// replaced by their coerced values.
func (ex *execution) literal(v *language.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case language.Variable:
		return ex.vars[v.Raw]
	case language.IntValue:
		if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return int(n)
		}
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case language.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case language.BooleanValue:
		return v.Raw == "true"
	case language.NullValue:
		return nil
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = ex.literal(c.Value)
		}
		return out
	case language.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			out[c.Name] = ex.literal(c.Value)
		}
		return out
	default:
		return v.Raw
	}
}

// coerceInput validates value against an input type and normalizes it:
// Int becomes int, Float becomes float64, ID becomes string, and a single
// value given for a list becomes a list of one.
func (ex *execution) coerceInput(value any, t *schema.TypeRef) (any, error) {
	if t.IsNonNull() {
		if value == nil {
			return nil, fmt.Errorf("null given for non-null type")
		}
		return ex.coerceInput(value, t.OfType)
	}
	if value == nil {
		return nil, nil
	}
	if t.Kind == schema.TypeRefKindList {
		items, ok := value.([]any)
		if !ok {
			v, err := ex.coerceInput(value, t.OfType)
			if err != nil {
				return nil, err
			}
			return []any{v}, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := ex.coerceInput(item, t.OfType)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}

	switch t.Named {
	case "Int":
		return coerceInt(value)
	case "Float":
		return coerceFloat(value)
	case "String":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected a string, got %T", value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected a boolean, got %T", value)
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case int, int32, int64:
			return fmt.Sprint(v), nil
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatInt(int64(v), 10), nil
			}
		}
		return nil, fmt.Errorf("expected an ID, got %T", value)
	}

	typ := ex.schema.Types[t.Named]
	if typ == nil {
		return value, nil
	}
	switch typ.Kind {
	case schema.TypeKindEnum:
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a %s value, got %T", typ.Name, value)
		}
		for _, ev := range typ.EnumValues {
			if ev.Name == name {
				return name, nil
			}
		}
		return nil, fmt.Errorf("%q is not a value of %s", name, typ.Name)
	case schema.TypeKindInputObject:
		return ex.coerceObject(value, typ)
	}
	return value, nil
}

func (ex *execution) coerceObject(value any, typ *schema.Type) (any, error) {
	given, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object for %s, got %T", typ.Name, value)
	}
	out := make(map[string]any, len(typ.InputFields))
	for _, f := range typ.InputFields {
		v, ok := given[f.Name]
		if !ok {
			if f.DefaultValue == nil {
				if f.Type.IsNonNull() {
					return nil, fmt.Errorf("%s.%s of required type was not provided", typ.Name, f.Name)
				}
				continue
			}
			v = f.DefaultValue
		}
		cv, err := ex.coerceInput(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typ.Name, f.Name, err)
		}
		out[f.Name] = cv
	}
	for name := range given {
		if _, ok := out[name]; ok {
			continue
		}
		if !hasInputField(typ, name) {
			return nil, fmt.Errorf("%s has no field %q", typ.Name, name)
		}
	}
	if typ.OneOf && len(out) != 1 {
		return nil, fmt.Errorf("%s takes exactly one field", typ.Name)
	}
	return out, nil
}

func hasInputField(typ *schema.Type, name string) bool {
	for _, f := range typ.InputFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func coerceInt(value any) (any, error) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		n = int64(v)
	default:
		return nil, fmt.Errorf("expected an integer, got %T", value)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%d does not fit a 32-bit integer", n)
	}
	return int(n), nil
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("expected a number, got %T", value)
}

func refFromAST(t *language.Type) *schema.TypeRef {
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(refFromAST(t.Elem))
	} else {
		ref = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		return schema.NonNullType(ref)
	}
	return ref
}
