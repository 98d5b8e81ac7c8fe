package codegen

import (
	"fmt"
	"reflect"
)

// Header is the first line of every generated artifact.
const Header = "Code generated by contractgraph. DO NOT EDIT."

// Document is one resolver artifact before printing. Definitions keep their
// insertion order; names are unique by construction.
type Document struct {
	Imports     []Import
	Definitions []*Definition
	Query       []*Field
	Mutation    []*Field

	byName map[string]*Definition
}

// Import names an entity defined by another artifact.
type Import struct {
	Name string
	Path string
}

// DefinitionKind is the SDL keyword of a definition.
type DefinitionKind string

const (
	KindObject DefinitionKind = "type"
	KindInput  DefinitionKind = "input"
)

type Definition struct {
	Kind   DefinitionKind
	Name   string
	Fields []*Field
}

// Field is an object field, an input field or a root field.
type Field struct {
	Name       string
	Args       []*Arg
	Type       string
	Default    any
	HasDefault bool
	Directives []*Directive
}

type Arg struct {
	Name string
	Type string
}

type Directive struct {
	Name string
	Args []DirectiveArg
}

// DirectiveArg values are strings or string lists.
type DirectiveArg struct {
	Name  string
	Value any
}

// Add appends def. Adding an identical definition twice is a no-op; a
// different definition under a taken name is an error.
func (d *Document) Add(def *Definition) error {
	if d.byName == nil {
		d.byName = make(map[string]*Definition)
	}
	if prev, ok := d.byName[def.Name]; ok {
		if reflect.DeepEqual(prev, def) {
			return nil
		}
		return fmt.Errorf("definition %q declared twice with different shapes", def.Name)
	}
	d.byName[def.Name] = def
	d.Definitions = append(d.Definitions, def)
	return nil
}

// Definition returns the named definition.
func (d *Document) Definition(name string) *Definition {
	return d.byName[name]
}

// reserve claims name for a definition that is still being assembled, so
// recursive message references terminate.
func (d *Document) reserve(name string) bool {
	if d.byName == nil {
		d.byName = make(map[string]*Definition)
	}
	if _, ok := d.byName[name]; ok {
		return false
	}
	d.byName[name] = nil
	return true
}

func (d *Document) fill(def *Definition) {
	d.byName[def.Name] = def
	d.Definitions = append(d.Definitions, def)
}

func (d *Document) addImport(name, path string) {
	for _, imp := range d.Imports {
		if imp.Name == name && imp.Path == path {
			return
		}
	}
	d.Imports = append(d.Imports, Import{Name: name, Path: path})
}

func bind(service, method, args string) *Directive {
	dir := &Directive{Name: "bind", Args: []DirectiveArg{
		{Name: "service", Value: service},
		{Name: "method", Value: method},
	}}
	if args != "" {
		dir.Args = append(dir.Args, DirectiveArg{Name: "args", Value: args})
	}
	return dir
}

func authRoles(roles ...string) *Directive {
	return &Directive{Name: "auth", Args: []DirectiveArg{{Name: "roles", Value: roles}}}
}

func rootOnly() *Directive {
	return &Directive{Name: "rootOnly"}
}

func link(entity, field string) *Directive {
	return &Directive{Name: "link", Args: []DirectiveArg{
		{Name: "entity", Value: entity},
		{Name: "field", Value: field},
	}}
}
