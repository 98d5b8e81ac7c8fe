package executor

import (
	"fmt"
	"reflect"

	language "github.com/hanpama/contractgraph/internal/language"
	schema "github.com/hanpama/contractgraph/internal/schema"
)

// position is a slot of the response tree: an object field or a list
// element. parent is nil for root fields.
type position struct {
	parent *position
	typ    *schema.TypeRef
	path   Path
	set    func(any)
	dead   bool
}

// live reports whether no enclosing position has been discarded.
func (p *position) live() bool {
	for q := p; q != nil; q = q.parent {
		if q.dead {
			return false
		}
	}
	return true
}

// nullify clears the nearest nullable position at or above p. Every position
// passed on the way is discarded. Reaching the root nulls the whole data.
func (ex *execution) nullify(p *position) {
	for ; p != nil; p = p.parent {
		if p.dead {
			return
		}
		p.dead = true
		if !p.typ.IsNonNull() {
			p.set(nil)
			return
		}
	}
	ex.dataNull = true
}

// executeFields resolves groups against source and writes them into out.
// It reports true when a Non-Null field became null, in which case the
// object owning out must itself become null.
func (ex *execution) executeFields(obj *schema.Type, groups []fieldGroup, source any, owner *position, path Path, out map[string]any) bool {
	for _, g := range groups {
		name := g.name
		first := g.fields[0]
		if first.Name == "__typename" {
			out[name] = obj.Name
			continue
		}

		fieldPath := path.append(name)
		def := obj.Field(first.Name)
		if def == nil {
			ex.addError(fmt.Errorf("Cannot query field %q on type %q", first.Name, obj.Name), fieldPath, g.fields)
			continue
		}

		pos := &position{
			parent: owner,
			typ:    def.Type,
			path:   fieldPath,
			set:    func(v any) { out[name] = v },
		}
		out[name] = nil

		args, err := ex.coerceArguments(def, first.Arguments)
		if err != nil {
			if ex.fail(pos, g.fields, err) {
				return true
			}
			continue
		}

		if def.Async {
			ex.pending = append(ex.pending, &pendingField{
				pos:    pos,
				fields: g.fields,
				task:   AsyncResolveTask{ObjectType: obj.Name, Field: def.Name, Source: source, Args: args},
			})
			continue
		}

		v, err := ex.runtime.ResolveSync(ex.ctx, obj.Name, def.Name, source, args)
		if err != nil {
			if ex.fail(pos, g.fields, err) {
				return true
			}
			continue
		}
		if ex.settle(pos, g.fields, v) {
			return true
		}
	}
	return false
}

// fail records a resolver error for pos. It reports whether the null must
// propagate past pos.
func (ex *execution) fail(pos *position, fields []*language.Field, err error) bool {
	ex.addError(err, pos.path, fields)
	pos.dead = true
	if pos.typ.IsNonNull() {
		return true
	}
	pos.set(nil)
	return false
}

// settle completes a resolved value and stores it at pos. It reports whether
// the null must propagate past pos.
func (ex *execution) settle(pos *position, fields []*language.Field, value any) bool {
	v, nulled := ex.complete(pos, pos.typ, fields, value)
	if v == nil {
		if nulled {
			pos.dead = true
		}
		if pos.typ.IsNonNull() {
			return true
		}
	}
	pos.set(v)
	return false
}

// complete shapes value to t. The second result is true when the value is
// null and an error explaining it was already recorded.
func (ex *execution) complete(pos *position, t *schema.TypeRef, fields []*language.Field, value any) (any, bool) {
	if t.IsNonNull() {
		v, nulled := ex.complete(pos, t.OfType, fields, value)
		if v == nil {
			if !nulled {
				ex.addError(fmt.Errorf("Cannot return null for non-nullable field %s", pos.path), pos.path, fields)
			}
			return nil, true
		}
		return v, false
	}
	if isNullish(value) {
		return nil, false
	}
	if t.Kind == schema.TypeRefKindList {
		return ex.completeList(pos, t, fields, value)
	}

	named := ex.schema.Types[t.Named]
	if named == nil {
		ex.addError(fmt.Errorf("unknown type %s", t.Named), pos.path, fields)
		return nil, true
	}
	switch named.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := ex.runtime.SerializeLeafValue(ex.ctx, named.Name, value)
		if err != nil {
			ex.addError(err, pos.path, fields)
			return nil, true
		}
		return v, false
	case schema.TypeKindObject:
		out := make(map[string]any)
		if ex.executeFields(named, ex.collect(named, subSelections(fields)), value, pos, pos.path, out) {
			return nil, true
		}
		return out, false
	default:
		ex.addError(fmt.Errorf("%s cannot be used as an output type", named.Name), pos.path, fields)
		return nil, true
	}
}

func (ex *execution) completeList(pos *position, t *schema.TypeRef, fields []*language.Field, value any) (any, bool) {
	items, ok := toSlice(value)
	if !ok {
		ex.addError(fmt.Errorf("expected a list for %s, got %T", pos.path, value), pos.path, fields)
		return nil, true
	}
	elem := t.OfType
	out := make([]any, len(items))
	for i, item := range items {
		ip := &position{
			parent: pos,
			typ:    elem,
			path:   pos.path.append(i),
			set:    func(v any) { out[i] = v },
		}
		v, nulled := ex.complete(ip, elem, fields, item)
		if v == nil && nulled {
			ip.dead = true
			if elem.IsNonNull() {
				return nil, true
			}
		}
		out[i] = v
	}
	return out, false
}

func subSelections(fields []*language.Field) language.SelectionSet {
	if len(fields) == 1 {
		return fields[0].SelectionSet
	}
	var set language.SelectionSet
	for _, f := range fields {
		set = append(set, f.SelectionSet...)
	}
	return set
}

func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// isNullish treats typed nils as null.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
