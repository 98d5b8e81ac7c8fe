package executor

import (
	language "github.com/hanpama/contractgraph/internal/language"
	schema "github.com/hanpama/contractgraph/internal/schema"
)

// fieldGroup is every selection sharing one response name.
type fieldGroup struct {
	name   string
	fields []*language.Field
}

// collect flattens set for obj in query order, expanding fragments whose
// type condition names obj and honouring @skip and @include.
func (ex *execution) collect(obj *schema.Type, set language.SelectionSet) []fieldGroup {
	var (
		groups []fieldGroup
		index  = map[string]int{}
		seen   = map[string]bool{}
	)
	var walk func(language.SelectionSet)
	walk = func(set language.SelectionSet) {
		for _, sel := range set {
			switch sel := sel.(type) {
			case *language.Field:
				if !ex.included(sel.Directives) {
					continue
				}
				name := sel.Alias
				if name == "" {
					name = sel.Name
				}
				if i, ok := index[name]; ok {
					groups[i].fields = append(groups[i].fields, sel)
					continue
				}
				index[name] = len(groups)
				groups = append(groups, fieldGroup{name: name, fields: []*language.Field{sel}})
			case *language.InlineFragment:
				if !ex.included(sel.Directives) || !appliesTo(sel.TypeCondition, obj) {
					continue
				}
				walk(sel.SelectionSet)
			case *language.FragmentSpread:
				if seen[sel.Name] || !ex.included(sel.Directives) {
					continue
				}
				seen[sel.Name] = true
				frag := ex.doc.Fragments.ForName(sel.Name)
				if frag == nil || !appliesTo(frag.TypeCondition, obj) || !ex.included(frag.Directives) {
					continue
				}
				walk(frag.SelectionSet)
			}
		}
	}
	walk(set)
	return groups
}

func appliesTo(condition string, obj *schema.Type) bool {
	return condition == "" || condition == obj.Name
}

func (ex *execution) included(dirs language.DirectiveList) bool {
	if d := dirs.ForName("skip"); d != nil && ex.directiveIf(d) {
		return false
	}
	if d := dirs.ForName("include"); d != nil && !ex.directiveIf(d) {
		return false
	}
	return true
}

func (ex *execution) directiveIf(d *language.Directive) bool {
	arg := d.Arguments.ForName("if")
	if arg == nil {
		return false
	}
	b, _ := ex.literal(arg.Value).(bool)
	return b
}

// depth is the deepest field nesting under set. Fragments count toward the
// fields that spread them. active guards against fragment cycles.
func (ex *execution) depth(set language.SelectionSet, active map[string]bool) int {
	deepest := 0
	for _, sel := range set {
		var d int
		switch sel := sel.(type) {
		case *language.Field:
			d = 1 + ex.depth(sel.SelectionSet, active)
		case *language.InlineFragment:
			d = ex.depth(sel.SelectionSet, active)
		case *language.FragmentSpread:
			frag := ex.doc.Fragments.ForName(sel.Name)
			if frag == nil || active[sel.Name] {
				continue
			}
			active[sel.Name] = true
			d = ex.depth(frag.SelectionSet, active)
			delete(active, sel.Name)
		}
		deepest = max(deepest, d)
	}
	return deepest
}
